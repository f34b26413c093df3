package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"risk_service/internal/domain/model"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// insertBatch keeps a multi-row insert under the bind parameter limits of
// both drivers.
const insertBatch = 1000

const schemaDDL = `
CREATE TABLE IF NOT EXISTS incidents (
	run_id     TEXT             NOT NULL,
	seq        INTEGER          NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	is_night   BOOLEAN          NOT NULL,
	risk_score DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS training_runs (
	id             TEXT PRIMARY KEY,
	corpus_run_id  TEXT             NOT NULL,
	forest_seed    BIGINT           NOT NULL,
	samples        INTEGER          NOT NULL,
	train_size     INTEGER          NOT NULL,
	test_size      INTEGER          NOT NULL,
	mse            DOUBLE PRECISION NOT NULL,
	r2             DOUBLE PRECISION NOT NULL,
	artifact_path  TEXT             NOT NULL,
	artifact_bytes BIGINT           NOT NULL,
	recorded_at    TIMESTAMP        NOT NULL
);`

// IncidentStore persists generated corpora keyed by a run id. It works on
// Postgres and SQLite.
type IncidentStore struct {
	DB *sqlx.DB
}

// NewIncidentStore opens the database and creates the schema if needed.
func NewIncidentStore(ctx context.Context, driver, dsn string) (*IncidentStore, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s store: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer; avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	s := &IncidentStore{DB: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *IncidentStore) migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *IncidentStore) Close() error {
	return s.DB.Close()
}

type incidentRow struct {
	RunID string `db:"run_id"`
	Seq   int    `db:"seq"`
	model.IncidentRecord
}

// SaveCorpus stores records under runID in one transaction.
func (s *IncidentStore) SaveCorpus(ctx context.Context, runID string, records []model.IncidentRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("refusing to save an empty corpus for run %s", runID)
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin corpus transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO incidents (run_id, seq, latitude, longitude, is_night, risk_score)
		VALUES (:run_id, :seq, :latitude, :longitude, :is_night, :risk_score)`

	for start := 0; start < len(records); start += insertBatch {
		end := min(start+insertBatch, len(records))
		rows := make([]incidentRow, 0, end-start)
		for i := start; i < end; i++ {
			rows = append(rows, incidentRow{RunID: runID, Seq: i, IncidentRecord: records[i]})
		}
		if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
			return fmt.Errorf("failed to insert incidents %d-%d: %w", start, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit corpus: %w", err)
	}
	return nil
}

// LoadCorpus returns the records of runID in generation order.
func (s *IncidentStore) LoadCorpus(ctx context.Context, runID string) ([]model.IncidentRecord, error) {
	query := s.DB.Rebind(`
		SELECT latitude, longitude, is_night, risk_score
		FROM incidents
		WHERE run_id = ?
		ORDER BY seq`)

	var records []model.IncidentRecord
	if err := s.DB.SelectContext(ctx, &records, query, runID); err != nil {
		return nil, fmt.Errorf("failed to query corpus %s: %w", runID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records stored for run %s", model.ErrInsufficientData, runID)
	}
	return records, nil
}
