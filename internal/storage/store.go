package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	// Register postgres and sqlite3 drivers
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"backtestplot/internal/finance"
)

var ErrRunNotFound = errors.New("run not found")

// Run is a stored backtest batch.
type Run struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Payload   []byte    `db:"payload" json:"-"`
}

// Batch decodes the stored payload.
func (r *Run) Batch() (*finance.Batch, error) {
	return finance.DecodeBatch(r.Payload)
}

// Store keeps backtest batches as runs in a SQL database.
type Store struct{ db *sqlx.DB }

// Open connects to a sqlite3 or postgres database.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// InitSchema creates the runs table if it does not exist.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	payloadType := "BLOB"
	if db.DriverName() == "postgres" {
		payloadType = "BYTEA"
	}
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS runs(
		id TEXT PRIMARY KEY, name TEXT NOT NULL, created_at TIMESTAMP NOT NULL, payload `+payloadType+` NOT NULL
	)`)
	return err
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// SaveRun validates and stores a batch under a fresh id.
func (s *Store) SaveRun(ctx context.Context, name string, b *finance.Batch) (*Run, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}
	run := &Run{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Payload:   payload,
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO runs(id,name,created_at,payload) VALUES(?,?,?,?)`),
		run.ID, run.Name, run.CreatedAt, run.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}
	return run, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, s.db.Rebind(`SELECT id,name,created_at,payload FROM runs WHERE id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs newest first, without payloads. A limit of zero or
// less lists every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id,name,created_at FROM runs ORDER BY created_at DESC, id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []Run
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM runs WHERE id=?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
