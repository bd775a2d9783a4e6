// Package status renders unrolled timelines and acquisition results for the
// terminal.
package status

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openmri/mrc/internal/application"
	"github.com/openmri/mrc/internal/domain"
	"github.com/openmri/mrc/internal/postproc"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type model struct {
	render func(styles) string
	styles styles
	output string
}

func newModel(render func(styles) string) model {
	return model{
		render: render,
		styles: newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = m.render(m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

func runRender(render func(styles) string) (string, error) {
	p := tea.NewProgram(
		newModel(render),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}

// RenderTimeline formats an unrolled timeline as a per-channel overview with
// output utilization bars and acquisition window listings.
func RenderTimeline(timeline domain.Timeline, opts RenderOptions) (string, error) {
	return runRender(func(s styles) string {
		return renderTimelineView(timeline, opts, s)
	})
}

// RenderRun formats the outcome of an acquisition run, including per-channel
// signal statistics when post-processing summaries are available.
func RenderRun(result application.RunResult, summaries []postproc.ChannelSummary, opts RenderOptions) (string, error) {
	return runRender(func(s styles) string {
		return renderRunView(result, summaries, opts, s)
	})
}
