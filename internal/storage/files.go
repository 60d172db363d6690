package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func timestamp() string {
	return time.Now().UTC().Format(timeFormat)
}

// FileStore persists fetched network files so definition sources survive restarts.
type FileStore struct {
	db *DB

	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err  error
}

// NewFileStore wraps db.
func NewFileStore(db *DB) *FileStore {
	return &FileStore{db: db}
}

func (s *FileStore) codecs() error {
	s.once.Do(func() {
		s.enc, s.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if s.err != nil {
			return
		}
		s.dec, s.err = zstd.NewReader(nil)
	})
	return s.err
}

// Get returns the stored body for name.
func (s *FileStore) Get(ctx context.Context, name string) (string, bool, error) {
	if err := s.codecs(); err != nil {
		return "", false, err
	}

	var body []byte
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT body FROM fetched_files WHERE name = ?`, name,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fetched file lookup failed: %w", err)
	}

	plain, err := s.dec.DecodeAll(body, nil)
	if err != nil {
		return "", false, fmt.Errorf("corrupt stored body for %s: %w", name, err)
	}

	if _, err := s.db.conn.ExecContext(ctx,
		`UPDATE fetched_files SET last_used_at = ? WHERE name = ?`,
		timestamp(), name,
	); err != nil {
		s.db.logger.Debug("failed to touch fetched file", "name", name, "error", err.Error())
	}
	return string(plain), true, nil
}

// Put stores content under name, replacing any previous body.
func (s *FileStore) Put(ctx context.Context, name, content string) error {
	if err := s.codecs(); err != nil {
		return err
	}

	body := s.enc.EncodeAll([]byte(content), nil)
	now := timestamp()

	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fetched_files (name, body, size, fetched_at, last_used_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				body = excluded.body,
				size = excluded.size,
				fetched_at = excluded.fetched_at,
				last_used_at = excluded.last_used_at
		`, name, body, len(content), now, now)
		return err
	})
}

// Delete removes name from the store.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM fetched_files WHERE name = ?`, name)
	return err
}

// Count returns the number of stored files.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM fetched_files`).Scan(&n)
	return n, err
}

// Prune keeps the keep most recently used files and deletes the rest.
func (s *FileStore) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.conn.ExecContext(ctx, `
		DELETE FROM fetched_files WHERE name NOT IN (
			SELECT name FROM fetched_files ORDER BY last_used_at DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune fetched files: %w", err)
	}
	return res.RowsAffected()
}

// StoredFile describes one persisted file.
type StoredFile struct {
	Name       string
	Size       int
	FetchedAt  time.Time
	LastUsedAt time.Time
}

// List returns stored files, most recently used first.
func (s *FileStore) List(ctx context.Context) ([]StoredFile, error) {
	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT name, size, fetched_at, last_used_at
		FROM fetched_files ORDER BY last_used_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredFile
	for rows.Next() {
		var f StoredFile
		var fetched, used string
		if err := rows.Scan(&f.Name, &f.Size, &fetched, &used); err != nil {
			return nil, err
		}
		f.FetchedAt, _ = time.Parse(timeFormat, fetched)
		f.LastUsedAt, _ = time.Parse(timeFormat, used)
		out = append(out, f)
	}
	return out, rows.Err()
}
