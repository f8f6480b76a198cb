package database

import (
	"context"
	"errors"

	"github.com/drugraph/drugraph-api/internal/database/models"
)

var (
	ErrNotFound = errors.New("record not found")
)

// IngestRunRepository persists the outcome of every ingestion invocation,
// including the per-row errors the run summary collects.
type IngestRunRepository interface {
	CreateRun(ctx context.Context, run *models.IngestRun) (int64, error)
	FinishRun(ctx context.Context, run *models.IngestRun) error
	GetRunByID(ctx context.Context, id int64) (*models.IngestRun, error)
	GetLatestRunByFileHash(ctx context.Context, hash []byte) (*models.IngestRun, error)

	AddRowErrors(ctx context.Context, runID int64, rowErrors []*models.RowError) error
	GetRowErrors(ctx context.Context, runID int64) ([]*models.RowError, error)
}
