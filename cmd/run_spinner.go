package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type acquisitionDoneMsg struct {
	err error
}

type acquisitionSpinnerModel struct {
	spinner spinner.Model
	label   string
	acquire tea.Cmd
	err     error
	done    bool
}

func newAcquisitionSpinnerModel(label string, acquire tea.Cmd) acquisitionSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return acquisitionSpinnerModel{
		spinner: s,
		label:   label,
		acquire: acquire,
	}
}

func (m acquisitionSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.acquire)
}

func (m acquisitionSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case acquisitionDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m acquisitionSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

func runAcquisitionSpinner(ctx context.Context, output io.Writer, acquire func(context.Context) error) error {
	acquireCmd := func() tea.Msg {
		return acquisitionDoneMsg{err: acquire(ctx)}
	}

	p := tea.NewProgram(
		newAcquisitionSpinnerModel("Acquiring...", acquireCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(acquisitionSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
