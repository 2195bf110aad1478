// Package db persists served predictions in SQLite.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"attrition/ml"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// PredictionRecord is one served prediction with the input that produced it.
type PredictionRecord struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	DatasetID   string            `json:"dataset_id,omitempty"`
	ModelType   string            `json:"model_type"`
	Label       int               `json:"label"`
	Probability float64           `json:"probability"`
	Message     string            `json:"message"`
	Input       ml.RawInput       `json:"input"`
	Report      ml.EncodingReport `json:"encoding"`
}

// Store is a prediction history backed by one SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("db: path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("db: create directory: %w", err)
		}
	}

	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", path, err)
	}
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id TEXT PRIMARY KEY,
        created_at DATETIME NOT NULL,
        dataset_id TEXT,
        model_type TEXT NOT NULL,
        label INTEGER NOT NULL,
        probability REAL NOT NULL,
        message TEXT NOT NULL,
        input TEXT NOT NULL,
        report TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("db: create schema: %w", err)
	}
	return &Store{db: database}, nil
}

// SavePrediction stores record, filling in ID and CreatedAt when unset, and returns the
// stored copy.
func (s *Store) SavePrediction(ctx context.Context, record PredictionRecord) (PredictionRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	input, err := json.Marshal(record.Input)
	if err != nil {
		return PredictionRecord{}, fmt.Errorf("db: encode input: %w", err)
	}
	report, err := json.Marshal(record.Report)
	if err != nil {
		return PredictionRecord{}, fmt.Errorf("db: encode report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (id, created_at, dataset_id, model_type, label, probability, message, input, report)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.CreatedAt, nullString(record.DatasetID), record.ModelType,
		record.Label, record.Probability, record.Message, string(input), string(report))
	if err != nil {
		return PredictionRecord{}, fmt.Errorf("db: insert prediction: %w", err)
	}
	return record, nil
}

// ListPredictions returns the newest records first. limit <= 0 means 50; it is capped
// at 500.
func (s *Store) ListPredictions(ctx context.Context, limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, created_at, dataset_id, model_type, label, probability, message, input, report
        FROM predictions
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("db: query predictions: %w", err)
	}
	defer rows.Close()

	records := []PredictionRecord{}
	for rows.Next() {
		var r PredictionRecord
		var datasetID sql.NullString
		var input, report string
		if err := rows.Scan(&r.ID, &r.CreatedAt, &datasetID, &r.ModelType, &r.Label,
			&r.Probability, &r.Message, &input, &report); err != nil {
			return nil, fmt.Errorf("db: scan prediction: %w", err)
		}
		r.DatasetID = datasetID.String
		if err := json.Unmarshal([]byte(input), &r.Input); err != nil {
			return nil, fmt.Errorf("db: decode input of %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(report), &r.Report); err != nil {
			return nil, fmt.Errorf("db: decode report of %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
