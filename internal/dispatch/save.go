package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrSaveCancelled reports that the user (or the Prompt hook) declined the
// save. The dispatcher treats it like a failed save and re-attempts the copy.
var ErrSaveCancelled = errors.New("dispatch: save cancelled")

// Saver persists PNG bytes under a suggested filename and returns the path
// actually written.
type Saver interface {
	Save(ctx context.Context, png []byte, suggested string) (string, error)
}

// FileSaver writes into Dir. Existing files are never overwritten: a numeric
// suffix is appended instead ("shot.png", "shot (1).png", ...).
type FileSaver struct {
	Dir string
	// Prompt, when set, is asked for the final path. Returning ok=false
	// cancels the save.
	Prompt func(ctx context.Context, suggested string) (path string, ok bool)
}

func (s *FileSaver) Save(ctx context.Context, png []byte, suggested string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSaveCancelled, err)
	}
	if suggested == "" {
		suggested = DefaultFilename
	}
	suggested = filepath.Base(suggested)

	path := filepath.Join(s.Dir, suggested)
	if s.Prompt != nil {
		p, ok := s.Prompt(ctx, path)
		if !ok || p == "" {
			return "", ErrSaveCancelled
		}
		path = p
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("dispatch: save: %w", err)
		}
	}
	for i := 1; ; i++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			path = numbered(path, i)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("dispatch: save: %w", err)
		}
		if _, err := f.Write(png); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("dispatch: save: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("dispatch: save: %w", err)
		}
		return path, nil
	}
}

// numbered returns base path with " (n)" before the extension, stripping a
// previous suffix first.
func numbered(path string, n int) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	if i := strings.LastIndex(stem, " ("); i >= 0 && strings.HasSuffix(stem, ")") {
		if _, err := strconv.Atoi(stem[i+2 : len(stem)-1]); err == nil {
			stem = stem[:i]
		}
	}
	return stem + " (" + strconv.Itoa(n) + ")" + ext
}
