package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// ErrClipboardUnavailable is returned when the system clipboard could not be
// initialised (no display server, missing cgo support).
var ErrClipboardUnavailable = errors.New("dispatch: clipboard unavailable")

// Copier places PNG bytes on a clipboard.
type Copier interface {
	Copy(ctx context.Context, png []byte) error
}

// Clipboard is the system clipboard Copier. Init runs once per process.
type Clipboard struct {
	once    sync.Once
	initErr error
}

func (c *Clipboard) Copy(_ context.Context, png []byte) error {
	c.once.Do(func() { c.initErr = clipboard.Init() })
	if c.initErr != nil {
		return fmt.Errorf("%w: %w", ErrClipboardUnavailable, c.initErr)
	}
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

// CopierFunc adapts a function to Copier.
type CopierFunc func(ctx context.Context, png []byte) error

func (f CopierFunc) Copy(ctx context.Context, png []byte) error { return f(ctx, png) }
