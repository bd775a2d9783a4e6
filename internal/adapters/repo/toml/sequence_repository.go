package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/openmri/mrc/internal/domain"
	"github.com/openmri/mrc/internal/ports"
)

type SequenceRepository struct {
	sequencesPath string
	mu            *sync.RWMutex
}

var _ ports.SequenceRepository = (*SequenceRepository)(nil)

func NewSequenceRepository(cfg *viper.Viper) (*SequenceRepository, error) {
	path, err := resolvePath(cfg, sequencesPathKey, sequencesConfigFile)
	if err != nil {
		return nil, err
	}

	return &SequenceRepository{sequencesPath: path, mu: lockForPath(path)}, nil
}

func (r *SequenceRepository) Load(ctx context.Context, name string) ([]domain.SequenceBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	for _, entry := range file.Sequences {
		if entry.Name != name {
			continue
		}

		blocks := make([]domain.SequenceBlock, 0, len(entry.Blocks))
		for i, raw := range entry.Blocks {
			block := blockFromSchema(raw)
			if err := block.Validate(); err != nil {
				return nil, fmt.Errorf("sequence %q block %d: %w", name, i, err)
			}
			blocks = append(blocks, block)
		}

		return blocks, nil
	}

	return nil, fmt.Errorf("sequence %q: %w", name, domain.ErrSequenceNotFound)
}

func (r *SequenceRepository) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(file.Sequences))
	for _, entry := range file.Sequences {
		names = append(names, entry.Name)
	}
	sort.Strings(names)

	return names, nil
}

func (r *SequenceRepository) readSchema() (sequencesFileSchema, error) {
	data, err := os.ReadFile(r.sequencesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sequencesFileSchema{}, nil
		}
		return sequencesFileSchema{}, fmt.Errorf("read sequences file: %w", err)
	}

	var file sequencesFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return sequencesFileSchema{}, fmt.Errorf("decode sequences file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return sequencesFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func blockFromSchema(raw blockSchema) domain.SequenceBlock {
	return domain.SequenceBlock{
		Kind:            domain.BlockKind(raw.Kind),
		Channel:         domain.ChannelID(raw.Channel),
		Start:           raw.Start,
		Duration:        raw.Duration,
		Amplitude:       raw.Amplitude,
		Phase:           raw.Phase,
		FrequencyOffset: raw.FrequencyOffset,
		Envelope:        raw.Envelope,
		RiseTime:        raw.RiseTime,
		FlatTime:        raw.FlatTime,
		FallTime:        raw.FallTime,
		Receive:         domain.ReceiveChannel(raw.Receive),
	}
}
