package framecap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/framecap/internal/urlguard"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHTTP_Health(t *testing.T) {
	h := testService(t, newPage(false)).Handler(HTTPOptions{})
	w := do(t, h, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("X-Trace-ID missing")
	}
}

func TestHTTP_Capture(t *testing.T) {
	h := testService(t, newPage(true)).Handler(HTTPOptions{})
	w := do(t, h, "POST", "/api/capture",
		`{"target":{"url":"https://example.com"},"rect":{"x":10,"y":10,"width":100,"height":50}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: got %q, want image/png", ct)
	}
	if w.Header().Get("X-Dark-Scheme") != "true" {
		t.Errorf("X-Dark-Scheme: got %q", w.Header().Get("X-Dark-Scheme"))
	}
	if got := w.Header().Get("X-Effective-Scale"); got != "2" {
		t.Errorf("X-Effective-Scale: got %q, want 2", got)
	}
	if !strings.HasPrefix(w.Header().Get("X-Capture-Id"), "shot_") {
		t.Errorf("X-Capture-Id: got %q", w.Header().Get("X-Capture-Id"))
	}
	if cw, ch := decodeSize(t, w.Body.Bytes()); cw != 540 || ch != 440 {
		t.Errorf("canvas: got %dx%d, want 540x440", cw, ch)
	}
}

func TestHTTP_CaptureDeliveryFailure(t *testing.T) {
	h := testService(t, newPage(false), withBrokenClipboard).Handler(HTTPOptions{})
	w := do(t, h, "POST", "/api/capture", `{"target":{"url":"https://example.com"},"deliver":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Delivery-Error") == "" {
		t.Error("X-Delivery-Error missing")
	}
	if w.Body.Len() == 0 {
		t.Error("PNG body missing")
	}
}

func TestHTTP_CaptureErrors(t *testing.T) {
	h := testService(t, newPage(false)).Handler(HTTPOptions{})
	tests := []struct {
		name, body string
		want       int
	}{
		{"small rect", `{"target":{"url":"u"},"rect":{"x":0,"y":0,"width":9,"height":40}}`, http.StatusBadRequest},
		{"no target", `{}`, http.StatusBadRequest},
		{"bad json", `{"target":`, http.StatusBadRequest},
		{"unknown field", `{"target":{"url":"u"},"zoom":3}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "POST", "/api/capture", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status: got %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHTTP_CaptureUnavailable(t *testing.T) {
	p := newPage(false)
	p.capErr = http.ErrHandlerTimeout
	h := testService(t, p).Handler(HTTPOptions{})
	w := do(t, h, "POST", "/api/capture", `{"target":{"url":"u"}}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502", w.Code)
	}
}

func TestHTTP_CaptureRateLimited(t *testing.T) {
	h := testService(t, newPage(false)).Handler(HTTPOptions{CaptureLimit: 1})
	body := `{"target":{"url":"u"},"rect":{"x":0,"y":0,"width":10,"height":10}}`
	if w := do(t, h, "POST", "/api/capture", body); w.Code != http.StatusOK {
		t.Fatalf("first: got %d, want 200", w.Code)
	}
	if w := do(t, h, "POST", "/api/capture", body); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second: got %d, want 429", w.Code)
	}
}

func TestHTTP_Scheme(t *testing.T) {
	h := testService(t, newPage(true)).Handler(HTTPOptions{})
	w := do(t, h, "POST", "/api/scheme", `{"target":{"display":0}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", w.Code, w.Body.String())
	}
	var r SchemeReply
	if err := json.Unmarshal(w.Body.Bytes(), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.Dark || r.Heuristic != "class" {
		t.Errorf("got %+v, want dark by class", r)
	}
}

func TestHTTP_Scale(t *testing.T) {
	h := testService(t, newPage(false)).Handler(HTTPOptions{})
	w := do(t, h, "POST", "/api/scale", `{"target":{"url":"u"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", w.Code, w.Body.String())
	}
	var r ScaleReply
	json.Unmarshal(w.Body.Bytes(), &r)
	if r.Requested != 2 || r.Effective != 2 || r.DPR != 1 {
		t.Errorf("got %+v", r)
	}
}

func TestHTTP_Watermark(t *testing.T) {
	h := testService(t, newPage(false), withPrefs(t)).Handler(HTTPOptions{})

	w := do(t, h, "PUT", "/api/prefs/watermark", `{"text":"  @framed  "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put: got %d (%s)", w.Code, w.Body.String())
	}
	w = do(t, h, "GET", "/api/prefs/watermark", "")
	var r WatermarkReply
	json.Unmarshal(w.Body.Bytes(), &r)
	if r.Text != "@framed" {
		t.Errorf("text: got %q, want @framed", r.Text)
	}
}

func TestHTTP_WatermarkWithoutPrefs(t *testing.T) {
	h := testService(t, newPage(false)).Handler(HTTPOptions{})
	if w := do(t, h, "GET", "/api/prefs/watermark", ""); w.Code != http.StatusNotImplemented {
		t.Fatalf("status: got %d, want 501", w.Code)
	}
}

func TestHTTP_BodyLimit(t *testing.T) {
	h := testService(t, newPage(false)).Handler(HTTPOptions{MaxBodyBytes: 16})
	w := do(t, h, "PUT", "/api/prefs/watermark", `{"text":"`+strings.Repeat("x", 64)+`"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d, want 413", w.Code)
	}
}

func TestHTTP_CaptureForbiddenTarget(t *testing.T) {
	guard := &urlguard.Guard{}
	h := testService(t, newPage(false), func(c *Config) { c.Guard = guard }).Handler(HTTPOptions{})
	w := do(t, h, "POST", "/api/capture", `{"target":{"url":"http://127.0.0.1:9222/json"}}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", w.Code)
	}
	w = do(t, h, "POST", "/api/scheme", `{"target":{"url":"file:///etc/passwd"}}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("scheme status: got %d, want 403", w.Code)
	}
}
