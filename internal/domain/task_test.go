package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTestInput_NormalizesScalars(t *testing.T) {
	var suite TestSuite
	raw := `{"data":[{"input":["abc", 42, 3.10, true],"expected":"ok"}]}`
	if err := json.Unmarshal([]byte(raw), &suite); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := suite.Data[0].Input
	want := []string{"abc", "42", "3.10", "true"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("input[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTestInput_RejectsNested(t *testing.T) {
	for _, raw := range []string{`[[1]]`, `[{"a":1}]`, `[null]`, `"x"`} {
		var in TestInput
		if err := json.Unmarshal([]byte(raw), &in); err == nil {
			t.Errorf("Unmarshal(%s) succeeded, want error", raw)
		}
	}
}

func TestSubmissionStatus_Valid(t *testing.T) {
	for s, want := range map[SubmissionStatus]bool{
		SubmissionDone:    true,
		SubmissionFailed:  true,
		SubmissionNotDone: false,
		"":                false,
	} {
		if s.Valid() != want {
			t.Errorf("%q.Valid() = %v", s, !want)
		}
	}
}

func TestExpiryBoundaries(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	code := &VerificationCode{ExpiresAt: at}
	if code.Expired(at) {
		t.Error("code is still valid at its expiry instant")
	}
	if !code.Expired(at.Add(time.Nanosecond)) {
		t.Error("code should be expired after its expiry instant")
	}

	s := &Session{ExpiresAt: at}
	if !s.Expired(at) {
		t.Error("session is dead at its expiry instant")
	}
	if s.Expired(at.Add(-time.Nanosecond)) {
		t.Error("session should be live before expiry")
	}
}
