// CLAUDE:SUMMARY Writes artifacts as JSON lines (base64 PNG) or raw PNG bytes to an io.Writer.
package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// Stdout writes artifacts to an io.Writer (default os.Stdout), either as
// JSON lines with the PNG base64-encoded, or as raw PNG bytes.
type Stdout struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
	raw bool
}

// NewStdout creates a JSON-lines Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w, enc: json.NewEncoder(w)}
}

// NewRawStdout creates a sink that writes the PNG bytes unframed, for
// piping into another program.
func NewRawStdout(w io.Writer) *Stdout {
	s := NewStdout(w)
	s.raw = true
	return s
}

func (s *Stdout) Send(_ context.Context, a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw {
		_, err := s.w.Write(a.PNG)
		return err
	}
	return s.enc.Encode(envelope{Type: "artifact", Data: a})
}

func (s *Stdout) Close() error { return nil }

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
