package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tonotes/model"
)

// SQLiteStore persists notes in a single SQLite file. Timestamps are stored
// as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, storageError("open database", err)
	}
	// One connection: all writers are serialised through it.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, storageError(pragma, err)
		}
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, storageError("init schema", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, note *model.Note) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, content, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.Content, note.Version, toMillis(note.CreatedAt), toMillis(note.UpdatedAt))
	if err != nil {
		return storageError("insert note", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Note, error) {
	return getNote(ctx, s.db, id)
}

func (s *SQLiteStore) List(ctx context.Context) ([]*model.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, version, created_at, updated_at FROM notes ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, storageError("list notes", err)
	}
	defer rows.Close()

	notes := make([]*model.Note, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, storageError("scan note", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list notes", err)
	}
	return notes, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id, content string, expectedVersion int64, updatedAt time.Time) (*model.Note, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageError("begin update", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE notes SET content = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		content, toMillis(updatedAt), id, expectedVersion)
	if err != nil {
		return nil, storageError("update note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storageError("update note", err)
	}

	current, err := getNote(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, conflictError(id, expectedVersion, current)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("commit update", err)
	}
	return current, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return storageError("delete note", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageError("delete note", err)
	}
	if affected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		return 0, storageError("count notes", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getNote(ctx context.Context, q queryer, id string) (*model.Note, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, content, version, created_at, updated_at FROM notes WHERE id = ?`, id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, storageError("get note", err)
	}
	return note, nil
}

func scanNote(row scanner) (*model.Note, error) {
	var (
		note             model.Note
		created, updated int64
	)
	if err := row.Scan(&note.ID, &note.Content, &note.Version, &created, &updated); err != nil {
		return nil, err
	}
	note.CreatedAt = fromMillis(created)
	note.UpdatedAt = fromMillis(updated)
	return &note, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

