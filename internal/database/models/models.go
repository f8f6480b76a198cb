package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RunStatus represents the state of an ingestion run.
type RunStatus int

const (
	RunStatusPending    RunStatus = 0
	RunStatusProcessing RunStatus = 1
	RunStatusCompleted  RunStatus = 2
	RunStatusFailed     RunStatus = 3
)

// IngestRun records one invocation of the ingestion pipeline.
type IngestRun struct {
	bun.BaseModel `bun:"table:ingest_runs,alias:ir"`

	ID               int64     `bun:",pk,autoincrement"`
	SourceFile       string    `bun:",notnull"`
	FileHash         []byte    `bun:",notnull"`
	Status           RunStatus `bun:",notnull"`
	RowsProcessed    int       `bun:",nullzero"`
	NodesCreated     int       `bun:",nullzero"`
	RelsCreated      int       `bun:",nullzero"`
	SkippedEndpoints int       `bun:",nullzero"`
	ErrorMessage     string    `bun:",nullzero"`
	CreatedAt        time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// RowError is one per-row failure collected during a run. Skipped
// relationship endpoints land here too, so nothing is dropped silently.
type RowError struct {
	bun.BaseModel `bun:"table:row_errors,alias:re"`

	ID        int64      `bun:",pk,autoincrement"`
	RunID     int64      `bun:",notnull"`
	Run       *IngestRun `bun:"rel:belongs-to,join:run_id=id"`
	RowNumber int        `bun:",notnull"`
	Column    string     `bun:"col,nullzero"`
	Message   string     `bun:",notnull"`
	CreatedAt time.Time  `bun:",nullzero,notnull,default:current_timestamp"`
}
