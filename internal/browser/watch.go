package browser

import (
	"context"
	"time"

	"github.com/hazyhaar/framecap/internal/selector"
)

// WatchMutations installs an attribute observer on <html> and <body> and
// polls it every interval (default 100ms). Class and style changes are sent
// on the returned channel, which closes when ctx is done.
func (t *Tab) WatchMutations(ctx context.Context, interval time.Duration) (<-chan selector.Mutation, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	if err := t.evalJSON(ctx, nil, watchMutationsJS); err != nil {
		return nil, err
	}

	ch := make(chan selector.Mutation, 16)
	go func() {
		defer close(ch)
		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			// The page may already be gone.
			_ = t.evalJSON(rctx, nil, unwatchMutationsJS)
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var batch []selector.Mutation
				if err := t.evalJSON(ctx, &batch, drainMutationsJS); err != nil {
					t.logger.Debug("browser: drain mutations failed", "error", err)
					continue
				}
				for _, m := range batch {
					select {
					case ch <- m:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch, nil
}
