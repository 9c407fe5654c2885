package ports

import (
	"context"

	"maintflow/internal/domain/workorder"
)

// TargetDirectory resolves an asset or instrument to its place in the plant hierarchy.
// Unknown targets, or targets not valid for the discipline, are validation errors.
type TargetDirectory interface {
	Resolve(ctx context.Context, discipline workorder.Discipline, target workorder.TargetRef) (workorder.Location, error)
}
