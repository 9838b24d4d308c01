// Package runner executes a local solution file against a task's test cases.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ErlanBelekov/devlife/internal/domain"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

const (
	DefaultDelay = 600 * time.Millisecond
	killGrace    = time.Second
)

// DefaultInterpreters maps a solution file extension to the program that runs it.
var DefaultInterpreters = map[string]string{
	".py": "python3",
	".js": "node",
	".rb": "ruby",
	".sh": "sh",
}

type Kind string

const (
	KindPassed   Kind = "passed"
	KindMismatch Kind = "mismatch"
	KindError    Kind = "error"
)

type Result struct {
	Index    int
	Kind     Kind
	Input    []string
	Expected string
	Actual   string
	Stderr   string
	Retried  bool
	Duration time.Duration
}

type Report struct {
	Results []Result
	Status  domain.SubmissionStatus
}

func (r Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Kind == KindPassed {
			n++
		}
	}
	return n
}

type Runner struct {
	interpreters map[string]string
	delay        time.Duration
	logger       *slog.Logger
}

type Option func(*Runner)

// WithDelay sets the pause before each test case.
func WithDelay(d time.Duration) Option {
	return func(r *Runner) { r.delay = d }
}

func WithInterpreter(ext, program string) Option {
	return func(r *Runner) { r.interpreters[ext] = program }
}

func New(logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		interpreters: make(map[string]string, len(DefaultInterpreters)),
		delay:        DefaultDelay,
		logger:       logger.With("component", "runner"),
	}
	for ext, prog := range DefaultInterpreters {
		r.interpreters[ext] = prog
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interpreter returns the program used for file, or ErrUnsupportedLanguage.
func (r *Runner) Interpreter(file string) (string, error) {
	ext := strings.ToLower(filepath.Ext(file))
	prog, ok := r.interpreters[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, ext)
	}
	return prog, nil
}

// Run executes file once per case, sequentially. A case whose first attempt exits
// non-zero or writes to stderr is retried once with its inputs on a single line.
// Cancelling ctx kills the running child and returns ctx.Err() with no report. An
// interpreter that cannot be started is an error with no report as well.
func (r *Runner) Run(ctx context.Context, file string, cases []domain.TestCase) (Report, error) {
	prog, err := r.Interpreter(file)
	if err != nil {
		return Report{}, err
	}

	report := Report{Results: make([]Result, 0, len(cases)), Status: domain.SubmissionDone}
	for i, tc := range cases {
		if err := r.wait(ctx); err != nil {
			return Report{}, err
		}

		res := Result{Index: i, Input: tc.Input, Expected: tc.Expected}

		out, err := r.exec(ctx, prog, file, perLine(tc.Input))
		if err == nil && out.failed() && ctx.Err() == nil {
			r.logger.DebugContext(ctx, "retrying with single-line input", "test", i+1)
			out, err = r.exec(ctx, prog, file, singleLine(tc.Input))
			res.Retried = true
		}
		if ctx.Err() != nil {
			return Report{}, ctx.Err()
		}
		if err != nil {
			return Report{}, err
		}

		res.Duration = out.duration
		res.Actual = strings.TrimSpace(out.stdout)
		res.Stderr = out.stderr
		switch {
		case out.failed():
			res.Kind = KindError
		case res.Actual == tc.Expected:
			res.Kind = KindPassed
		default:
			res.Kind = KindMismatch
		}
		if res.Kind != KindPassed {
			report.Status = domain.SubmissionFailed
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func (r *Runner) wait(ctx context.Context) error {
	if r.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type attempt struct {
	stdout   string
	stderr   string
	err      error
	duration time.Duration
}

func (a attempt) failed() bool {
	return a.err != nil || strings.TrimSpace(a.stderr) != ""
}

// exec runs one attempt. Only failures of a process that actually ran are part of the
// attempt; anything else (interpreter missing, not executable) is returned as an error.
func (r *Runner) exec(ctx context.Context, prog, file, stdin string) (attempt, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, prog, file)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren may hold the pipes open after the child is killed.
	cmd.WaitDelay = killGrace

	start := time.Now()
	err := cmd.Run()
	a := attempt{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr), errors.Is(err, exec.ErrWaitDelay):
		a.err = err
		if strings.TrimSpace(a.stderr) == "" {
			a.stderr = err.Error()
		}
	default:
		return attempt{}, fmt.Errorf("run %s: %w", prog, err)
	}
	return a, nil
}

func perLine(input []string) string {
	if len(input) == 0 {
		return ""
	}
	return strings.Join(input, "\n") + "\n"
}

func singleLine(input []string) string {
	if len(input) == 0 {
		return ""
	}
	return strings.Join(input, " ") + "\n"
}
