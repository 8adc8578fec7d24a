package prompt

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"intelaccel/internal/logging"
)

// Confirmer asks the operator a yes/no question. Anything other than an
// explicit yes is treated as no.
type Confirmer interface {
	Confirm(ctx context.Context, question string) bool
}

// Static answers every question with the same value
type Static bool

// Confirm returns the fixed answer
func (s Static) Confirm(context.Context, string) bool {
	return bool(s)
}

// TerminalConfirmer renders an interactive y/N prompt
type TerminalConfirmer struct {
	in         io.Reader
	out        io.Writer
	isTerminal func() bool
	logger     *logging.Logger
}

// NewTerminalConfirmer creates a confirmer reading from stdin
func NewTerminalConfirmer(logger *logging.Logger) *TerminalConfirmer {
	return &TerminalConfirmer{
		in:  os.Stdin,
		out: os.Stdout,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) // #nosec G115 -- file descriptors fit in int
		},
		logger: logger,
	}
}

// Confirm asks question and reports whether the operator answered yes.
// Without a terminal on stdin the answer is no and nothing is read.
func (c *TerminalConfirmer) Confirm(ctx context.Context, question string) bool {
	if !c.isTerminal() {
		c.logger.Info("prompt.no_tty", "No terminal available, assuming no", map[string]interface{}{
			"question": question,
		})
		fmt.Fprintf(c.out, "%s [y/N] n (no terminal)\n", question)
		return false
	}

	p := tea.NewProgram(newConfirmModel(question),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		c.logger.Warn("prompt.failed", "Prompt failed, assuming no", map[string]interface{}{
			"question": question,
			"error":    err.Error(),
		})
		return false
	}

	m, ok := final.(confirmModel)
	answer := ok && m.answer
	c.logger.Info("prompt.answered", "Operator answered prompt", map[string]interface{}{
		"question": question,
		"answer":   answer,
	})
	return answer
}

type confirmModel struct {
	question string
	answer   bool
	done     bool

	questionStyle lipgloss.Style
	hintStyle     lipgloss.Style
	answerStyle   lipgloss.Style
}

func newConfirmModel(question string) confirmModel {
	return confirmModel{
		question:      question,
		questionStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd700")),
		hintStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("#808080")),
		answerStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00d7ff")),
	}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "y", "Y":
		m.answer = true
		m.done = true
		return m, tea.Quit
	case "n", "N", "enter", "esc", "q", "ctrl+c", "ctrl+d":
		m.answer = false
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	line := m.questionStyle.Render(m.question) + " " + m.hintStyle.Render("[y/N]")
	if !m.done {
		return line + " "
	}
	answer := "no"
	if m.answer {
		answer = "yes"
	}
	return line + " " + m.answerStyle.Render(answer) + "\n"
}
