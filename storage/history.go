package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type Diagnosis struct {
	ID          string    `json:"id"`
	Disease     string    `json:"disease"`
	Confidence  float32   `json:"confidence"`
	ImageSHA256 string    `json:"image_sha256"`
	CreatedAt   time.Time `json:"created_at"`
}

// History persists successful diagnoses in SQLite.
type History struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS diagnoses (
    id TEXT PRIMARY KEY,
    disease TEXT NOT NULL,
    confidence REAL NOT NULL,
    image_sha256 TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_diagnoses_created_at ON diagnoses(created_at);
`

func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &History{db: db}, nil
}

func (h *History) Save(ctx context.Context, d Diagnosis) (Diagnosis, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO diagnoses (id, disease, confidence, image_sha256, created_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Disease, d.Confidence, d.ImageSHA256, d.CreatedAt)
	if err != nil {
		return d, fmt.Errorf("failed to save diagnosis: %w", err)
	}
	return d, nil
}

// Recent returns up to limit diagnoses, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Diagnosis, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, disease, confidence, image_sha256, created_at FROM diagnoses
         ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	out := make([]Diagnosis, 0, limit)
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.ID, &d.Disease, &d.Confidence, &d.ImageSHA256, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan diagnosis: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (h *History) Close() error {
	return h.db.Close()
}
