// CLAUDE:SUMMARY chi router for the framecap API: capture (image/png), scheme/scale queries, watermark preference.
package framecap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/framecap/kit"
	"github.com/hazyhaar/framecap/shield"
)

// HTTPOptions configures Handler.
type HTTPOptions struct {
	// MaxBodyBytes bounds request bodies. Default: 1 MiB.
	MaxBodyBytes int64
	// Timeout bounds one request. Default: 60s.
	Timeout time.Duration
	// CaptureLimit is the number of captures one client may run per minute.
	// Zero disables rate limiting.
	CaptureLimit int
	// Done stops the rate limiter's bucket collection when closed.
	Done <-chan struct{}
}

// Handler returns the HTTP API:
//
//	GET  /health
//	POST /api/capture            CaptureCommand → image/png
//	POST /api/scheme             {"target":…} → SchemeReply
//	POST /api/scale              {"target":…} → ScaleReply
//	GET  /api/prefs/watermark    → WatermarkReply
//	PUT  /api/prefs/watermark    {"text":…} → WatermarkReply
func (s *Service) Handler(opts HTTPOptions) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	ep := kit.Chain(
		kit.WithRequestIDs(requestIDs),
		kit.Logging(s.logger, "http"),
	)(s.Endpoint)

	r := chi.NewRouter()
	for _, mw := range shield.APIStack(opts.MaxBodyBytes) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	capture := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cmd CaptureCommand
		if !decode(w, r, &cmd) {
			return
		}
		resp, err := call(r.Context(), ep, opts.Timeout, cmd)
		reply, _ := resp.(*CaptureReply)
		if reply == nil {
			if err == nil {
				err = errors.New("framecap: empty capture reply")
			}
			writeError(w, HTTPStatus(err), err)
			return
		}
		if err != nil {
			// Framed but not delivered: the PNG is still returned.
			shield.GetLogger(r.Context()).Warn("framecap: delivery failed", "capture", reply.ID, "error", err)
			w.Header().Set("X-Delivery-Error", strings.ReplaceAll(err.Error(), "\n", "; "))
		}
		h := w.Header()
		h.Set("Content-Type", "image/png")
		h.Set("X-Capture-Id", reply.ID)
		h.Set("X-Effective-Scale", strconv.FormatFloat(reply.EffectiveScale, 'f', -1, 64))
		h.Set("X-Dark-Scheme", strconv.FormatBool(reply.Dark))
		if reply.SavedPath != "" {
			h.Set("X-Saved-Path", reply.SavedPath)
		}
		w.WriteHeader(http.StatusOK)
		w.Write(reply.PNG)
	}))
	if opts.CaptureLimit > 0 {
		rl := shield.NewRateLimiter(map[string]shield.RateLimitConfig{
			"POST /api/capture": {MaxRequests: opts.CaptureLimit, Window: time.Minute},
		})
		if opts.Done != nil {
			rl.StartGC(opts.Done, time.Minute)
		}
		capture = rl.Middleware(capture)
	}
	r.Method(http.MethodPost, "/api/capture", capture)

	r.Post("/api/scheme", func(w http.ResponseWriter, r *http.Request) {
		var cmd DetectSchemeCommand
		if !decode(w, r, &cmd) {
			return
		}
		reply(w, r, ep, opts.Timeout, cmd)
	})

	r.Post("/api/scale", func(w http.ResponseWriter, r *http.Request) {
		var cmd EstimateScaleCommand
		if !decode(w, r, &cmd) {
			return
		}
		reply(w, r, ep, opts.Timeout, cmd)
	})

	r.Route("/api/prefs/watermark", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			reply(w, r, ep, opts.Timeout, GetWatermarkCommand{})
		})
		r.Put("/", func(w http.ResponseWriter, r *http.Request) {
			var cmd SetWatermarkCommand
			if !decode(w, r, &cmd) {
				return
			}
			reply(w, r, ep, opts.Timeout, cmd)
		})
	})

	return r
}

func call(ctx context.Context, ep kit.Endpoint, timeout time.Duration, cmd Command) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return ep(ctx, cmd)
}

func reply(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, timeout time.Duration, cmd Command) {
	resp, err := call(r.Context(), ep, timeout, cmd)
	if err != nil {
		writeError(w, HTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
