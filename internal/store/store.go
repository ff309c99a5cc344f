package store

import (
	"context"

	"github.com/kyupark/socburn/internal/model"
)

// Store defines the persistence operations for runs and telemetry samples.
type Store interface {
	CreateRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	FinishRun(ctx context.Context, id, status string) error
	InsertSample(ctx context.Context, s *model.Sample) error
	GetSamples(ctx context.Context, runID string) ([]model.Sample, error)
	Close() error
}
