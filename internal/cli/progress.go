package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/falconiq/prsync/internal/pipeline"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// stepStartMsg announces the next running step.
type stepStartMsg struct {
	name  string
	index int
	total int
}

// stepDoneMsg carries a finished step's result.
type stepDoneMsg struct {
	result pipeline.Result
}

// pipelineDoneMsg signals that the whole run has finished.
type pipelineDoneMsg struct {
	err error
}

// runModel is the bubbletea model for pipeline step progress.
type runModel struct {
	cancel   context.CancelFunc
	progress progress.Model
	theme    Theme

	current  string
	index    int
	total    int
	finished []pipeline.Result
	done     bool
	quitting bool
	err      error
}

// newRunModel creates a new pipeline progress model.
func newRunModel(cancel context.CancelFunc) runModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return runModel{
		cancel:   cancel,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m runModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Cancel the run; the pipeline reports back through
			// pipelineDoneMsg once the current step unwinds.
			m.quitting = true
			m.cancel()
		}

	case stepStartMsg:
		m.current = msg.name
		m.index = msg.index
		m.total = msg.total

	case stepDoneMsg:
		m.finished = append(m.finished, msg.result)

	case pipelineDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m runModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m runModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.total == 0 {
		return "Starting pipeline...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.current))
	if m.quitting {
		status = m.theme.errorStyle().Render("[cancelling]")
	}

	pct := float64(len(m.finished)) / float64(m.total)
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("step %d/%d", m.index+1, m.total)

	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView renders the per-step outcome once the run has ended.
func (m runModel) finalView() string {
	var output string
	for _, r := range m.finished {
		if r.Err != nil {
			output += m.theme.errorStyle().Render(fmt.Sprintf("✗ %s", r.Name))
			output += fmt.Sprintf("  %.1fs  %v\n", r.Duration.Seconds(), r.Err)
			continue
		}
		output += m.theme.completedStyle().Render(fmt.Sprintf("✓ %s", r.Name))
		output += fmt.Sprintf("  %.1fs\n", r.Duration.Seconds())
	}

	switch {
	case m.quitting:
		output += m.theme.hintStyle().Render("\nRun cancelled. Rerun to resume from the last checkpoint.\n")
	case m.err != nil:
		output += m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Pipeline failed: %s\n", m.err))
	default:
		output += m.theme.completedStyle().Render("\n✓ Pipeline completed\n")
	}
	return output
}

// RunPipelineProgress runs the selected pipeline steps under an
// interactive progress UI. Ctrl+C cancels the run; checkpointing inside
// the stages makes the next invocation resume where it stopped.
func RunPipelineProgress(ctx context.Context, p *pipeline.Pipeline, startFrom string, only []string) ([]pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newRunModel(cancel))
	p.OnStepStart = func(name string, index, total int) {
		prog.Send(stepStartMsg{name: name, index: index, total: total})
	}
	p.OnStepDone = func(r pipeline.Result) {
		prog.Send(stepDoneMsg{result: r})
	}

	var (
		results []pipeline.Result
		runErr  error
	)
	go func() {
		results, runErr = p.Run(ctx, startFrom, only)
		prog.Send(pipelineDoneMsg{err: runErr})
	}()

	if _, err := prog.Run(); err != nil {
		return results, fmt.Errorf("progress UI error: %w", err)
	}
	return results, runErr
}
