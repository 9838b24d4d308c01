package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ErlanBelekov/devlife/internal/domain"
	"github.com/ErlanBelekov/devlife/internal/runner"
)

var (
	colorSuccess = lipgloss.Color("#8BC34A")
	colorFailure = lipgloss.Color("#E53935")
	colorMuted   = lipgloss.Color("#8A8F98")

	passStyle  = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(colorFailure).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	titleStyle = lipgloss.NewStyle().Bold(true)
	detailBox  = lipgloss.NewStyle().PaddingLeft(4)
)

func printTasks(w io.Writer, tasks []Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No tasks yet."))
		return
	}
	for _, t := range tasks {
		line := titleStyle.Render(t.ID) + "  " + t.Title
		if len(t.Tags) > 0 {
			line += "  " + mutedStyle.Render("["+strings.Join(t.Tags, ", ")+"]")
		}
		fmt.Fprintln(w, line)
	}
}

func printResult(w io.Writer, res runner.Result, total int) {
	label := fmt.Sprintf("Test %d/%d", res.Index+1, total)
	took := mutedStyle.Render(fmt.Sprintf("(%s)", res.Duration.Round(time.Millisecond)))

	switch res.Kind {
	case runner.KindPassed:
		fmt.Fprintf(w, "%s %s %s\n", passStyle.Render("PASS"), label, took)
	case runner.KindMismatch:
		fmt.Fprintf(w, "%s %s %s\n", failStyle.Render("FAIL"), label, took)
		fmt.Fprintln(w, detailBox.Render(fmt.Sprintf(
			"input:    %s\nexpected: %s\nactual:   %s",
			strings.Join(res.Input, " "), res.Expected, res.Actual)))
	case runner.KindError:
		fmt.Fprintf(w, "%s %s %s\n", failStyle.Render("ERROR"), label, took)
		fmt.Fprintln(w, detailBox.Render(strings.TrimSpace(res.Stderr)))
	}
}

func printSummary(w io.Writer, report runner.Report) {
	summary := fmt.Sprintf("%d/%d tests passed", report.Passed(), len(report.Results))
	if report.Status == domain.SubmissionDone {
		fmt.Fprintln(w, passStyle.Render(summary+", task done"))
		return
	}
	fmt.Fprintln(w, failStyle.Render(summary+", task failed"))
}
