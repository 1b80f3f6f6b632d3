// Package history records completed fills in SQLite so they can be listed
// and fetched again later.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/eventbrief/engine/fill"
	"github.com/WessleyAI/eventbrief/pkg/repo"
	"github.com/google/uuid"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS fills (
	id            TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL,
	event_name    TEXT NOT NULL,
	template_name TEXT NOT NULL,
	files         TEXT NOT NULL,
	total_fields  INTEGER NOT NULL,
	filled_fields INTEGER NOT NULL,
	completion    REAL NOT NULL,
	data          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS fills_created_at ON fills (created_at DESC);
`

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one completed fill. Data holds the filled schema and is empty
// in List results.
type Record struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	EventName    string          `json:"event_name"`
	TemplateName string          `json:"template_name"`
	Files        []string        `json:"files"`
	Stats        fill.Stats      `json:"stats"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Store is a SQLite-backed fill history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ repo.Repository[Record, string] = (*Store)(nil)

// Open opens the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := repo.OpenSQLite(ctx, path, schemaSQL)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Create stores rec under a new id and returns it as stored.
func (s *Store) Create(ctx context.Context, rec Record) (Record, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now().UTC()
	if rec.Files == nil {
		rec.Files = []string{}
	}
	files, err := json.Marshal(rec.Files)
	if err != nil {
		return Record{}, fmt.Errorf("history: encode files: %w", err)
	}
	data := rec.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fills (id, created_at, event_name, template_name, files, total_fields, filled_fields, completion, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.Format(timeLayout), rec.EventName, rec.TemplateName, string(files),
		rec.Stats.TotalFields, rec.Stats.FilledFields, rec.Stats.CompletionRate, string(data))
	if err != nil {
		return Record{}, fmt.Errorf("history: insert: %w", err)
	}
	return rec, nil
}

// Get returns the record with the given id, or repo.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, event_name, template_name, files, total_fields, filled_fields, completion, data
		 FROM fills WHERE id = ?`, id)
	rec, err := scan(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, repo.ErrNotFound
	}
	return rec, err
}

// List returns records newest first, without their data.
func (s *Store) List(ctx context.Context, opts repo.ListOpts) ([]Record, error) {
	opts = opts.Normalize()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, event_name, template_name, files, total_fields, filled_fields, completion, ''
		 FROM fills ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scan(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner, withData bool) (Record, error) {
	var (
		rec     Record
		created string
		files   string
		data    string
	)
	err := row.Scan(&rec.ID, &created, &rec.EventName, &rec.TemplateName, &files,
		&rec.Stats.TotalFields, &rec.Stats.FilledFields, &rec.Stats.CompletionRate, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("history: scan: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Record{}, fmt.Errorf("history: created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(files), &rec.Files); err != nil {
		return Record{}, fmt.Errorf("history: files: %w", err)
	}
	if withData {
		rec.Data = json.RawMessage(data)
	}
	return rec, nil
}
