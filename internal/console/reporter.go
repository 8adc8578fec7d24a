package console

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Reporter prints human-facing progress lines.
// Structured events go to the logger; this is what the operator reads.
type Reporter struct {
	out    io.Writer
	errOut io.Writer

	titleStyle   lipgloss.Style
	stepStyle    lipgloss.Style
	successStyle lipgloss.Style
	warnStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	hintStyle    lipgloss.Style
}

// NewReporter creates a reporter for stdout/stderr
func NewReporter() *Reporter {
	return NewWriterReporter(os.Stdout, os.Stderr)
}

// NewWriterReporter creates a reporter writing to the given streams.
// Colors are only emitted when out is a terminal.
func NewWriterReporter(out, errOut io.Writer) *Reporter {
	renderer := lipgloss.NewRenderer(out)
	return &Reporter{
		out:          out,
		errOut:       errOut,
		titleStyle:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")),
		stepStyle:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd700")),
		successStyle: renderer.NewStyle().Foreground(lipgloss.Color("#87d787")),
		warnStyle:    renderer.NewStyle().Foreground(lipgloss.Color("#ffaf00")),
		errorStyle:   renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff5f5f")),
		hintStyle:    renderer.NewStyle().Foreground(lipgloss.Color("#808080")),
	}
}

// Title prints the banner line
func (r *Reporter) Title(text string) {
	fmt.Fprintln(r.out, r.titleStyle.Render("=== "+text+" ==="))
}

// Step announces a pipeline stage
func (r *Reporter) Step(index, total int, text string) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.stepStyle.Render(fmt.Sprintf("[%d/%d] %s", index, total, text)))
}

// Info prints a plain progress line
func (r *Reporter) Info(format string, args ...interface{}) {
	fmt.Fprintf(r.out, "→ %s\n", fmt.Sprintf(format, args...))
}

// Success prints a ✓ line
func (r *Reporter) Success(format string, args ...interface{}) {
	fmt.Fprintln(r.out, r.successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Warn prints an advisory WARNING line; it never affects the exit status
func (r *Reporter) Warn(format string, args ...interface{}) {
	fmt.Fprintln(r.out, r.warnStyle.Render("⚠ WARNING: "+fmt.Sprintf(format, args...)))
}

// Error prints the ERROR-tagged line for a fatal failure
func (r *Reporter) Error(format string, args ...interface{}) {
	fmt.Fprintln(r.errOut, r.errorStyle.Render("❌ ERROR: "+fmt.Sprintf(format, args...)))
}

// Hint prints a dimmed follow-up line
func (r *Reporter) Hint(format string, args ...interface{}) {
	fmt.Fprintln(r.out, r.hintStyle.Render("  "+fmt.Sprintf(format, args...)))
}
