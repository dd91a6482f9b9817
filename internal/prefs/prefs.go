// CLAUDE:SUMMARY SQLite-backed preference store: watermark text (markup stripped, trimmed) and the first-use flag.
// Package prefs persists user preferences in a small SQLite key/value table.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/framecap/dbopen"
)

// Schema is the preference table.
const Schema = `
CREATE TABLE IF NOT EXISTS prefs (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

const upsert = `INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

const (
	keyWatermark = "watermark_text"
	keyUsed      = "has_been_used"
)

// MaxWatermarkLen bounds the stored watermark, in runes.
const MaxWatermarkLen = 200

// Store reads and writes preferences.
type Store struct {
	db     *sql.DB
	policy *bluemonday.Policy
	logger *slog.Logger
}

// Open opens (or creates) the preference database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("prefs: open: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an already-open database. The schema is applied by Open only;
// callers passing their own handle must have run Schema.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, policy: bluemonday.StrictPolicy(), logger: logger}
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// WatermarkText returns the stored watermark, or "" when none is set or the
// stored value is blank.
func (s *Store) WatermarkText(ctx context.Context) (string, error) {
	v, ok, err := s.get(ctx, keyWatermark)
	if err != nil || !ok {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// SetWatermarkText stores text after stripping markup and trimming, and
// records the first use in the same transaction. An empty result clears the
// watermark. Returns the value actually stored.
func (s *Store) SetWatermarkText(ctx context.Context, text string) (string, error) {
	clean := s.Clean(text)
	now := time.Now().UnixMilli()
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, kv := range [][2]string{{keyWatermark, clean}, {keyUsed, "1"}} {
			if _, err := tx.ExecContext(ctx, upsert, kv[0], kv[1], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("prefs: set watermark: %w", err)
	}
	s.logger.Debug("prefs: watermark updated", "len", len(clean))
	return clean, nil
}

// Clean strips markup and control characters, trims whitespace and bounds
// the length of a watermark candidate.
func (s *Store) Clean(text string) string {
	text = html.UnescapeString(s.policy.Sanitize(text))
	text = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > MaxWatermarkLen {
		text = strings.TrimSpace(string(r[:MaxWatermarkLen]))
	}
	return text
}

// HasBeenUsed reports whether MarkUsed was ever called.
func (s *Store) HasBeenUsed(ctx context.Context) (bool, error) {
	v, ok, err := s.get(ctx, keyUsed)
	if err != nil || !ok {
		return false, err
	}
	return v == "1", nil
}

// MarkUsed records the first use. Idempotent.
func (s *Store) MarkUsed(ctx context.Context) error {
	return s.set(ctx, keyUsed, "1")
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("prefs: get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := dbopen.Exec(ctx, s.db, upsert, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}
	return nil
}
