package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/openmri/mrc/internal/adapters/card/sim"
	statusadapter "github.com/openmri/mrc/internal/adapters/render/status"
	tomlrepo "github.com/openmri/mrc/internal/adapters/repo/toml"
	"github.com/openmri/mrc/internal/application"
	"github.com/openmri/mrc/internal/domain"
	"github.com/openmri/mrc/internal/ports"
	"github.com/openmri/mrc/internal/postproc"
)

type app struct {
	console        *application.ConsoleService
	newCard        func() ports.Card
	renderTimeline func(domain.Timeline, statusadapter.RenderOptions) (string, error)
	renderRun      func(application.RunResult, []postproc.ChannelSummary, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp() (*app, error) {
	sequences, err := tomlrepo.NewSequenceRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire sequence repository: %w", err)
	}

	parameters, err := tomlrepo.NewParameterRepository(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire parameter repository: %w", err)
	}

	console, err := application.NewConsoleService(sequences, parameters, defaultProfile())
	if err != nil {
		return nil, fmt.Errorf("wire console service: %w", err)
	}

	return &app{
		console:        console,
		newCard:        func() ports.Card { return sim.New() },
		renderTimeline: statusadapter.RenderTimeline,
		renderRun:      statusadapter.RenderRun,
		now:            time.Now,
	}, nil
}
