package runner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ErlanBelekov/devlife/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestRunner(opts ...Option) *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, append([]Option{WithDelay(0)}, opts...)...)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solution.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

const sumScript = `read a
read b
echo $((a + b))
`

func TestRun_AllPassed(t *testing.T) {
	file := writeScript(t, sumScript)
	cases := []domain.TestCase{
		{Input: domain.TestInput{"1", "2"}, Expected: "3"},
		{Input: domain.TestInput{"10", "-4"}, Expected: "6"},
	}

	report, err := newTestRunner().Run(context.Background(), file, cases)
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionDone, report.Status)
	require.Equal(t, 2, report.Passed())

	want := []Result{
		{Index: 0, Kind: KindPassed, Input: []string{"1", "2"}, Expected: "3", Actual: "3"},
		{Index: 1, Kind: KindPassed, Input: []string{"10", "-4"}, Expected: "6", Actual: "6"},
	}
	if diff := cmp.Diff(want, report.Results, cmpopts.IgnoreFields(Result{}, "Duration")); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_MismatchFailsReport(t *testing.T) {
	file := writeScript(t, sumScript)
	cases := []domain.TestCase{
		{Input: domain.TestInput{"1", "2"}, Expected: "3"},
		{Input: domain.TestInput{"2", "2"}, Expected: "5"},
		{Input: domain.TestInput{"0", "0"}, Expected: "0"},
	}

	report, err := newTestRunner().Run(context.Background(), file, cases)
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionFailed, report.Status)
	require.Equal(t, 2, report.Passed())

	got := report.Results[1]
	require.Equal(t, KindMismatch, got.Kind)
	require.Equal(t, "4", got.Actual)
	require.Equal(t, "5", got.Expected)
	require.False(t, got.Retried)
}

func TestRun_RetriesWithSingleLine(t *testing.T) {
	file := writeScript(t, `read line
case "$line" in
  *" "*) echo "$line" | tr ' ' '+' ;;
  *) echo "expected one line" >&2; exit 1 ;;
esac
`)
	cases := []domain.TestCase{{Input: domain.TestInput{"1", "2", "3"}, Expected: "1+2+3"}}

	report, err := newTestRunner().Run(context.Background(), file, cases)
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionDone, report.Status)
	require.True(t, report.Results[0].Retried)
	require.Equal(t, KindPassed, report.Results[0].Kind)
}

func TestRun_StderrCountsAsError(t *testing.T) {
	file := writeScript(t, `echo 3
echo warning >&2
`)
	cases := []domain.TestCase{{Input: domain.TestInput{"1", "2"}, Expected: "3"}}

	report, err := newTestRunner().Run(context.Background(), file, cases)
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionFailed, report.Status)

	got := report.Results[0]
	require.Equal(t, KindError, got.Kind)
	require.True(t, got.Retried)
	require.Contains(t, got.Stderr, "warning")
}

func TestRun_NonZeroExitAfterRetry(t *testing.T) {
	file := writeScript(t, "exit 3\n")
	cases := []domain.TestCase{{Input: domain.TestInput{"x"}, Expected: ""}}

	report, err := newTestRunner().Run(context.Background(), file, cases)
	require.NoError(t, err)
	require.Equal(t, KindError, report.Results[0].Kind)
	require.NotEmpty(t, report.Results[0].Stderr)
}

func TestRun_WhitespaceOnlyStderrIsIgnored(t *testing.T) {
	file := writeScript(t, `read a
read b
printf '\n  \n' >&2
echo $((a + b))
`)
	cases := []domain.TestCase{{Input: domain.TestInput{"2", "3"}, Expected: "5"}}

	report, err := newTestRunner().Run(context.Background(), file, cases)
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionDone, report.Status)
	require.False(t, report.Results[0].Retried)
}

func TestRun_MissingInterpreterIsFatal(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "solution.py")
	require.NoError(t, os.WriteFile(file, []byte("print(input())\n"), 0o644))

	r := newTestRunner(WithInterpreter(".py", "/nonexistent/python3"))
	report, err := r.Run(context.Background(), file, []domain.TestCase{{Input: domain.TestInput{"1"}, Expected: "1"}})
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Contains(t, err.Error(), "/nonexistent/python3")
	require.Empty(t, report.Results)
}

func TestRun_UnsupportedLanguage(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	file := filepath.Join(dir, "solution.go")
	require.NoError(t, os.WriteFile(file, []byte("touch "+marker+"\n"), 0o644))

	_, err := newTestRunner().Run(context.Background(), file,
		[]domain.TestCase{{Input: domain.TestInput{"1"}, Expected: "1"}})
	require.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, statErr := os.Stat(marker)
	require.True(t, os.IsNotExist(statErr))
}

func TestRun_CustomInterpreter(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "solution.bash")
	require.NoError(t, os.WriteFile(file, []byte(sumScript), 0o644))

	report, err := newTestRunner(WithInterpreter(".bash", "sh")).Run(context.Background(), file,
		[]domain.TestCase{{Input: domain.TestInput{"4", "5"}, Expected: "9"}})
	require.NoError(t, err)
	require.Equal(t, domain.SubmissionDone, report.Status)
}

func TestRun_CancelledDuringDelay(t *testing.T) {
	file := writeScript(t, sumScript)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(WithDelay(time.Hour))
	_, err := r.Run(ctx, file, []domain.TestCase{{Input: domain.TestInput{"1", "2"}, Expected: "3"}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_CancelKillsChild(t *testing.T) {
	file := writeScript(t, "sleep 30\n")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestRunner().Run(ctx, file, []domain.TestCase{{Input: domain.TestInput{}, Expected: ""}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_DelayBetweenCases(t *testing.T) {
	file := writeScript(t, sumScript)
	cases := []domain.TestCase{
		{Input: domain.TestInput{"1", "1"}, Expected: "2"},
		{Input: domain.TestInput{"2", "2"}, Expected: "4"},
	}

	start := time.Now()
	_, err := newTestRunner(WithDelay(50*time.Millisecond)).Run(context.Background(), file, cases)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestInterpreter(t *testing.T) {
	r := newTestRunner()
	for file, want := range map[string]string{
		"a.py": "python3",
		"b.js": "node",
		"c.rb": "ruby",
		"d.sh": "sh",
		"E.PY": "python3",
	} {
		got, err := r.Interpreter(file)
		require.NoError(t, err, file)
		require.Equal(t, want, got, file)
	}

	_, err := r.Interpreter("Makefile")
	require.ErrorIs(t, err, ErrUnsupportedLanguage)
}
