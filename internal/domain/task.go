package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrTaskNotFound            = errors.New("task not found")
	ErrTaskConflict            = errors.New("task with this id already exists")
	ErrInvalidSubmissionStatus = errors.New("invalid submission status")
)

type SubmissionStatus string

const (
	SubmissionDone    SubmissionStatus = "done"
	SubmissionFailed  SubmissionStatus = "failed"
	SubmissionNotDone SubmissionStatus = "not done" // never stored, absence of a row
)

// Valid reports whether s may be recorded by a submission.
func (s SubmissionStatus) Valid() bool {
	return s == SubmissionDone || s == SubmissionFailed
}

type Task struct {
	ID        string
	Title     string
	Objective string
	Tags      []string
	Content   string
	Author    string
	Tests     []TestCase // populated only by detail lookups
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TestCase struct {
	Input    TestInput `json:"input"`
	Expected string    `json:"expected"`
}

// TestSuite is the stored and wire form of a task's tests: {"data": [...]}.
type TestSuite struct {
	Data []TestCase `json:"data"`
}

// TestInput is the ordered list of stdin lines for a test case. Authors write inputs as
// JSON strings or numbers; numbers keep their literal text.
type TestInput []string

func (in *TestInput) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode test input: %w", err)
	}

	out := make(TestInput, len(raw))
	for i, v := range raw {
		switch t := v.(type) {
		case string:
			out[i] = t
		case json.Number:
			out[i] = t.String()
		case bool:
			out[i] = fmt.Sprintf("%t", t)
		default:
			return fmt.Errorf("test input %d: unsupported value %v", i, v)
		}
	}
	*in = out
	return nil
}

type Submission struct {
	UserID    string
	TaskID    string
	Status    SubmissionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskWithStatus is a task joined with one user's submission status.
type TaskWithStatus struct {
	Task
	Status SubmissionStatus
}
