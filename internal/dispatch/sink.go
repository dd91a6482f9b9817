// Package dispatch delivers framed screenshots: clipboard copy, save to
// disk, and fan-out to additional sinks.
package dispatch

import (
	"context"
	"time"
)

// DefaultFilename is the suggested name of a saved screenshot.
const DefaultFilename = "aesthetic-screenshot.png"

// Artifact is one rendered screenshot ready for delivery.
type Artifact struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	PNG       []byte    `json:"png"`
	CreatedAt time.Time `json:"created_at"`
}

// Sink is an additional output for artifacts (stdout, webhook, in-process
// callback).
type Sink interface {
	Send(ctx context.Context, a Artifact) error
	Close() error
}
