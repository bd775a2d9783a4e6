package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/openmri/mrc/internal/domain"
	"github.com/openmri/mrc/internal/ports"
)

const parametersTempPattern = ".parameters-*.toml.tmp"

type ParameterRepository struct {
	parametersPath string
	mu             *sync.RWMutex
}

var _ ports.ParameterRepository = (*ParameterRepository)(nil)

func NewParameterRepository(cfg *viper.Viper) (*ParameterRepository, error) {
	path, err := resolvePath(cfg, parametersPathKey, parametersConfigFile)
	if err != nil {
		return nil, err
	}

	return &ParameterRepository{parametersPath: path, mu: lockForPath(path)}, nil
}

// Load returns the persisted parameters, or the defaults when no parameter
// file exists yet.
func (r *ParameterRepository) Load(ctx context.Context) (domain.Parameters, error) {
	if err := ctx.Err(); err != nil {
		return domain.Parameters{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.parametersPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DefaultParameters(), nil
		}
		return domain.Parameters{}, fmt.Errorf("read parameters file: %w", err)
	}

	var file parametersFileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return domain.Parameters{}, fmt.Errorf("decode parameters file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return domain.Parameters{}, err
	}

	params := parametersFromSchema(file.Parameters)
	if err := params.Validate(); err != nil {
		return domain.Parameters{}, fmt.Errorf("validate persisted parameters: %w", err)
	}

	return params, nil
}

func (r *ParameterRepository) Save(ctx context.Context, params domain.Parameters) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("validate parameters: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file := parametersFileSchema{
		Version:    currentSchemaVersion,
		Parameters: parametersToSchema(params),
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode parameters file: %w", err)
	}

	return writeDataFile(r.parametersPath, data, parametersTempPattern)
}

func parametersToSchema(params domain.Parameters) parametersSchema {
	return parametersSchema{
		LarmorFrequency: params.LarmorFrequency,
		B1Scaling:       params.B1Scaling,
		GradientOffset: gradientOffsetSchema{
			X: params.GradientOffset.X,
			Y: params.GradientOffset.Y,
			Z: params.GradientOffset.Z,
		},
		DecimationFactor: params.DecimationFactor,
		Repetitions:      params.Repetitions,
		TimeoutRetries:   params.TimeoutRetries,
		Accumulation:     string(params.Accumulation),
	}
}

func parametersFromSchema(raw parametersSchema) domain.Parameters {
	return domain.Parameters{
		LarmorFrequency: raw.LarmorFrequency,
		B1Scaling:       raw.B1Scaling,
		GradientOffset: domain.GradientOffset{
			X: raw.GradientOffset.X,
			Y: raw.GradientOffset.Y,
			Z: raw.GradientOffset.Z,
		},
		DecimationFactor: raw.DecimationFactor,
		Repetitions:      raw.Repetitions,
		TimeoutRetries:   raw.TimeoutRetries,
		Accumulation:     domain.AccumulationMode(raw.Accumulation),
	}
}
