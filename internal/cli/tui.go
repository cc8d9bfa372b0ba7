package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/guiyumin/textube/internal/core/ai/transcriber"
	"github.com/guiyumin/textube/internal/core/pipeline"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))  // cyan
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))            // pink
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))  // green
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))            // gray
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))            // white
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))            // gray
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")) // orange
	errStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")) // red
)

type (
	progressMsg struct {
		message string
		percent int
	}
	resultMsg struct{ text string }
	errorMsg  struct{ message string }
	doneMsg   struct{ outcome pipeline.Outcome }
	tickMsg   time.Time
)

// teaSink forwards job events into a running bubbletea program.
type teaSink struct {
	send func(tea.Msg)
}

func (s teaSink) OnProgress(message string, percent int) {
	s.send(progressMsg{message: message, percent: percent})
}

func (s teaSink) OnFragmentsAggregated(text string) {
	s.send(resultMsg{text: text})
}

func (s teaSink) OnError(message string) {
	s.send(errorMsg{message: message})
}

func (s teaSink) OnDone(out pipeline.Outcome) {
	s.send(doneMsg{outcome: out})
}

// jobModel is the Bubble Tea model for a running job.
type jobModel struct {
	progress progress.Model
	spinner  spinner.Model

	source  string
	engine  string
	cancel  func()
	started time.Time

	percent    int
	message    string
	chars      int
	errMessage string
	cancelling bool
	done       bool
	outcome    pipeline.Outcome
}

func newJobModel(source, engine string, cancel func()) jobModel {
	p := progress.New(
		progress.WithScaledGradient("#FF6B6B", "#4ECDC4"),
		progress.WithWidth(50),
	)

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return jobModel{
		progress: p,
		spinner:  s,
		source:   source,
		engine:   engine,
		cancel:   cancel,
		started:  time.Now(),
		message:  "Preparing...",
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m jobModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m jobModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.cancelling {
				m.cancelling = true
				m.cancel()
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tickMsg:
		// redraw the elapsed time
		return m, tickCmd()

	case progressMsg:
		m.percent = msg.percent
		m.message = msg.message
		return m, m.progress.SetPercent(float64(msg.percent) / 100)

	case resultMsg:
		m.chars = len(msg.text)
		return m, nil

	case errorMsg:
		m.errMessage = msg.message
		return m, nil

	case doneMsg:
		m.done = true
		m.outcome = msg.outcome
		return m, tea.Quit
	}

	return m, nil
}

func (m jobModel) View() string {
	if m.done {
		elapsed := formatElapsed(m.outcome.Elapsed)
		switch m.outcome.Status {
		case pipeline.StatusSucceeded:
			return fmt.Sprintf("\n  %s %s\n  %s %s\n  %s %s\n\n",
				successStyle.Render("✓"),
				titleStyle.Render("Transcription complete"),
				labelStyle.Render("Elapsed:"),
				valueStyle.Render(elapsed),
				labelStyle.Render("Engine:"),
				valueStyle.Render(m.engine),
			)
		case pipeline.StatusCancelled:
			return fmt.Sprintf("\n  %s Transcription cancelled after %s\n\n", warnStyle.Render("!"), elapsed)
		default:
			return fmt.Sprintf("\n  %s Transcription failed: %s\n\n", errStyle.Render("✗"), m.outcome.Message)
		}
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), titleStyle.Render(m.message)))
	b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("Source:"), sourceStyle.Render(m.source)))
	b.WriteString(fmt.Sprintf("  %s %s\n\n", labelStyle.Render("Engine:"), valueStyle.Render(m.engine)))
	b.WriteString(fmt.Sprintf("  %s\n\n", m.progress.View()))
	b.WriteString(fmt.Sprintf("  %s %d%%  %s  %s %s\n",
		labelStyle.Render("Progress:"),
		m.percent,
		labelStyle.Render("│"),
		labelStyle.Render("Elapsed:"),
		valueStyle.Render(formatElapsed(time.Since(m.started))),
	))
	if m.errMessage != "" {
		b.WriteString(fmt.Sprintf("\n  %s %s\n", errStyle.Render("✗"), m.errMessage))
	}
	b.WriteString("\n")
	if m.cancelling {
		b.WriteString(warnStyle.Render("  Cancelling..."))
	} else {
		b.WriteString(helpStyle.Render("  Press q to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

// runTUI shows the job until it finishes and returns its outcome.
func runTUI(h *pipeline.Handle, sel transcriber.Selector) (pipeline.Outcome, error) {
	p := tea.NewProgram(newJobModel(h.SourceRef(), sel.String(), h.Cancel))

	go pipeline.Dispatch(context.Background(), h.Events(), teaSink{send: p.Send})

	if _, err := p.Run(); err != nil {
		return pipeline.Outcome{}, err
	}
	return h.Wait(context.Background())
}
