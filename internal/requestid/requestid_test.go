package requestid

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSanitize(t *testing.T) {
	if got := Sanitize("abc-123"); got != "abc-123" {
		t.Errorf("valid id replaced: %q", got)
	}
	for _, bad := range []string{"", "has space", "line\nbreak", strings.Repeat("x", 129)} {
		got := Sanitize(bad)
		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("Sanitize(%q) = %q, want a fresh UUID", bad, got)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != "" {
		t.Error("expected empty id")
	}
	if got := FromContext(WithRequestID(context.Background(), "r1")); got != "r1" {
		t.Errorf("got %q", got)
	}
}
