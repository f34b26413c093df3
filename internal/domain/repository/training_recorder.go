package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// TrainingRun is one completed training job.
type TrainingRun struct {
	ID            string    `db:"id" json:"id"`
	CorpusRunID   string    `db:"corpus_run_id" json:"corpus_run_id"`
	ForestSeed    int64     `db:"forest_seed" json:"forest_seed"`
	Samples       int       `db:"samples" json:"samples"`
	TrainSize     int       `db:"train_size" json:"train_size"`
	TestSize      int       `db:"test_size" json:"test_size"`
	MSE           float64   `db:"mse" json:"mse"`
	R2            float64   `db:"r2" json:"r2"`
	ArtifactPath  string    `db:"artifact_path" json:"artifact_path"`
	ArtifactBytes int64     `db:"artifact_bytes" json:"artifact_bytes"`
	RecordedAt    time.Time `db:"recorded_at" json:"recorded_at"`
}

type TrainingRecorder interface {
	SaveTrainingRun(ctx context.Context, run TrainingRun) error
	ListTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error)
}

// SQLTrainingRecorder keeps the training run ledger in the incident store's
// database.
type SQLTrainingRecorder struct {
	db *sqlx.DB
}

func NewSQLTrainingRecorder(db *sqlx.DB) *SQLTrainingRecorder {
	return &SQLTrainingRecorder{db: db}
}

func (r *SQLTrainingRecorder) SaveTrainingRun(ctx context.Context, run TrainingRun) error {
	const query = `
		INSERT INTO training_runs (
			id, corpus_run_id, forest_seed, samples,
			train_size, test_size, mse, r2,
			artifact_path, artifact_bytes, recorded_at
		) VALUES (
			:id, :corpus_run_id, :forest_seed, :samples,
			:train_size, :test_size, :mse, :r2,
			:artifact_path, :artifact_bytes, :recorded_at
		)`

	if run.RecordedAt.IsZero() {
		run.RecordedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("failed to record training run %s: %w", run.ID, err)
	}
	return nil
}

// ListTrainingRuns returns the most recent runs first.
func (r *SQLTrainingRecorder) ListTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.Rebind(`
		SELECT id, corpus_run_id, forest_seed, samples, train_size, test_size,
			mse, r2, artifact_path, artifact_bytes, recorded_at
		FROM training_runs
		ORDER BY recorded_at DESC, id
		LIMIT ?`)

	var runs []TrainingRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}
	return runs, nil
}
