package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/drugraph/drugraph-api/internal/database"
	"github.com/drugraph/drugraph-api/internal/database/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// BunStore implements database.IngestRunRepository over SQLite.
type BunStore struct {
	db *bun.DB
}

// Open opens (or creates) the SQLite ledger at path and ensures its tables.
func Open(path string) (*BunStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite ledger at %s: %w", path, err)
	}
	return New(sqldb)
}

// New wraps an existing *sql.DB. Split out so tests can use an in-memory DSN.
func New(sqldb *sql.DB) (*BunStore, error) {
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	store := &BunStore{db: bunDB}

	ctx := context.Background()
	if _, err := bunDB.NewCreateTable().Model((*models.IngestRun)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create ingest_runs table: %w", err)
	}
	if _, err := bunDB.NewCreateTable().Model((*models.RowError)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create row_errors table: %w", err)
	}

	return store, nil
}

func (s *BunStore) CreateRun(ctx context.Context, run *models.IngestRun) (int64, error) {
	if _, err := s.db.NewInsert().Model(run).Exec(ctx); err != nil {
		return 0, err
	}
	return run.ID, nil
}

func (s *BunStore) FinishRun(ctx context.Context, run *models.IngestRun) error {
	run.UpdatedAt = time.Now()
	_, err := s.db.NewUpdate().
		Model(run).
		Column("status", "rows_processed", "nodes_created", "rels_created", "skipped_endpoints", "error_message", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func (s *BunStore) GetRunByID(ctx context.Context, id int64) (*models.IngestRun, error) {
	run := new(models.IngestRun)
	if err := s.db.NewSelect().Model(run).Where("id = ?", id).Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

func (s *BunStore) GetLatestRunByFileHash(ctx context.Context, hash []byte) (*models.IngestRun, error) {
	run := new(models.IngestRun)
	if err := s.db.NewSelect().Model(run).Where("file_hash = ?", hash).Order("created_at DESC").Limit(1).Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

func (s *BunStore) AddRowErrors(ctx context.Context, runID int64, rowErrors []*models.RowError) error {
	if len(rowErrors) == 0 {
		return nil
	}
	for _, re := range rowErrors {
		re.RunID = runID
	}
	if _, err := s.db.NewInsert().Model(&rowErrors).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert %d row errors: %w", len(rowErrors), err)
	}
	return nil
}

func (s *BunStore) GetRowErrors(ctx context.Context, runID int64) ([]*models.RowError, error) {
	var out []*models.RowError
	if err := s.db.NewSelect().Model(&out).Where("run_id = ?", runID).Order("row_number ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}
