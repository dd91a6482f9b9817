package dispatch

import "context"

// ArtifactFunc is called for each artifact (in-process, zero serialisation).
type ArtifactFunc func(ctx context.Context, a Artifact) error

// Callback delivers artifacts via a Go function call.
type Callback struct {
	fn ArtifactFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn ArtifactFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, a Artifact) error {
	if c.fn != nil {
		return c.fn(ctx, a)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
