package ports

import (
	"context"

	"github.com/openmri/mrc/internal/domain"
)

// SequenceRepository loads already-authored pulse sequences as ordered block
// lists. Semantic validation of the sequence happens upstream; the unroller
// re-checks timing and overlaps only.
type SequenceRepository interface {
	Load(ctx context.Context, name string) ([]domain.SequenceBlock, error)
	List(ctx context.Context) ([]string, error)
}

type ParameterRepository interface {
	Load(ctx context.Context) (domain.Parameters, error)
	Save(ctx context.Context, params domain.Parameters) error
}
