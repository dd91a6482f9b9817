// CLAUDE:SUMMARY Deliver = clipboard copy (always) + save-as (independent) + copy retry on save cancel/failure + sink fan-out.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/framecap/idgen"
)

// ErrNothingDelivered is joined with the individual failures when no output
// (copy, save, sink) accepted the artifact.
var ErrNothingDelivered = errors.New("dispatch: nothing delivered")

// Config wires a Dispatcher. Every output is optional.
type Config struct {
	Copier Copier
	Saver  Saver
	Sinks  []Sink
	// IDs generates artifact IDs. Default: "shot_" + UUIDv7.
	IDs    idgen.Generator
	Logger *slog.Logger
}

// Delivery reports what happened to one artifact.
type Delivery struct {
	Artifact  Artifact `json:"artifact"`
	Copied    bool     `json:"copied"`
	Retried   bool     `json:"retried"`
	SavedPath string   `json:"saved_path,omitempty"`
	Sunk      bool     `json:"sunk"`
}

// Dispatcher hands a rendered PNG to the configured outputs.
type Dispatcher struct {
	copier Copier
	saver  Saver
	router *Router
	ids    idgen.Generator
	logger *slog.Logger
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.Prefixed("shot_", idgen.Default)
	}
	d := &Dispatcher{
		copier: cfg.Copier,
		saver:  cfg.Saver,
		ids:    cfg.IDs,
		logger: cfg.Logger,
	}
	if len(cfg.Sinks) > 0 {
		d.router = NewRouter(cfg.Logger, cfg.Sinks...)
	}
	return d
}

// Deliver copies png to the clipboard, saves it under suggested, and fans it
// out to the sinks. The copy is attempted regardless of the save outcome; a
// failed copy is retried once when the save was cancelled or failed too. An error is returned
// only when every configured output failed.
func (d *Dispatcher) Deliver(ctx context.Context, png []byte, suggested string) (Delivery, error) {
	if suggested == "" {
		suggested = DefaultFilename
	}
	del := Delivery{Artifact: Artifact{
		ID:        d.ids(),
		Filename:  suggested,
		PNG:       png,
		CreatedAt: time.Now().UTC(),
	}}

	var errs []error
	attempted := 0

	copyOnce := func() {
		if err := d.copier.Copy(ctx, png); err != nil {
			d.logger.Warn("dispatch: clipboard copy failed", "artifact", del.Artifact.ID, "error", err)
			errs = append(errs, fmt.Errorf("copy: %w", err))
			return
		}
		del.Copied = true
	}

	if d.copier != nil {
		attempted++
		copyOnce()
	}

	if d.saver != nil {
		attempted++
		path, err := d.saver.Save(ctx, png, suggested)
		switch {
		case err == nil:
			del.SavedPath = path
			d.logger.Info("dispatch: saved", "artifact", del.Artifact.ID, "path", path)
		case errors.Is(err, ErrSaveCancelled):
			d.logger.Info("dispatch: save cancelled", "artifact", del.Artifact.ID)
			errs = append(errs, err)
		default:
			d.logger.Warn("dispatch: save failed", "artifact", del.Artifact.ID, "error", err)
			errs = append(errs, fmt.Errorf("save: %w", err))
		}
		if err != nil && d.copier != nil && !del.Copied {
			del.Retried = true
			copyOnce()
		}
	}

	if d.router != nil {
		attempted++
		if err := d.router.Send(ctx, del.Artifact); err != nil {
			errs = append(errs, fmt.Errorf("sinks: %w", err))
		} else {
			del.Sunk = true
		}
	}

	if attempted > 0 && !del.Copied && del.SavedPath == "" && !del.Sunk {
		return del, errors.Join(append([]error{ErrNothingDelivered}, errs...)...)
	}
	return del, nil
}

// Close releases the sinks.
func (d *Dispatcher) Close() error {
	if d.router == nil {
		return nil
	}
	return d.router.Close()
}
