package requestid

import (
	"context"

	"github.com/google/uuid"
)

const (
	Header = "X-Request-ID"

	maxLength = 128
)

type ctxKey struct{}

func New() string {
	return uuid.NewString()
}

// Sanitize returns an inbound request ID if it is short printable ASCII, or a fresh one.
func Sanitize(incoming string) string {
	if incoming == "" || len(incoming) > maxLength {
		return New()
	}
	for i := 0; i < len(incoming); i++ {
		if c := incoming[i]; c < 0x21 || c > 0x7e {
			return New()
		}
	}
	return incoming
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns "" if ctx carries no request ID.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
