package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/framecap"
	"github.com/hazyhaar/framecap/internal/config"
	"github.com/hazyhaar/framecap/internal/geometry"
)

func TestParseRect(t *testing.T) {
	r, err := parseRect("40, 80,600,300.5")
	if err != nil {
		t.Fatalf("parseRect: %v", err)
	}
	want := geometry.Rect{X: 40, Y: 80, Width: 600, Height: 300.5}
	if r != want {
		t.Fatalf("got %+v, want %+v", r, want)
	}

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "0,0,-5,10"} {
		if _, err := parseRect(bad); err == nil {
			t.Errorf("parseRect(%q): expected error", bad)
		}
	}
}

func TestBuildCommand(t *testing.T) {
	cases := []struct {
		name string
		o    options
		want string
	}{
		{"none", options{display: -1}, "<nil>"},
		{"capture url", options{url: "https://example.com", rect: "0,0,100,50", display: -1}, "framecap.CaptureCommand"},
		{"capture display", options{display: 0}, "framecap.CaptureCommand"},
		{"scheme", options{url: "https://example.com", scheme: true, display: -1}, "framecap.DetectSchemeCommand"},
		{"scale", options{display: 1, scale: true}, "framecap.EstimateScaleCommand"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := buildCommand(tc.o, "shot.png")
			if err != nil {
				t.Fatalf("buildCommand: %v", err)
			}
			if got := typeName(cmd); got != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestBuildCommand_CaptureFields(t *testing.T) {
	cmd, err := buildCommand(options{url: "https://example.com", rect: "1,2,30,40", display: -1}, "shot.png")
	if err != nil {
		t.Fatalf("buildCommand: %v", err)
	}
	c := cmd.(framecap.CaptureCommand)
	if !c.Deliver || c.Filename != "shot.png" {
		t.Errorf("deliver/filename: got %v/%q", c.Deliver, c.Filename)
	}
	if c.Rect == nil || c.Rect.Width != 30 || c.Rect.Height != 40 {
		t.Errorf("rect: got %+v", c.Rect)
	}
}

func TestBuildCommand_Errors(t *testing.T) {
	for name, o := range map[string]options{
		"url and display":  {url: "https://example.com", display: 0},
		"scheme and scale": {url: "https://example.com", display: -1, scheme: true, scale: true},
		"rect alone":       {rect: "0,0,10,10", display: -1},
		"bad rect":         {url: "https://example.com", rect: "x", display: -1},
	} {
		if _, err := buildCommand(o, ""); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framecap.yaml")
	if err := os.WriteFile(path, []byte("output:\n  dir: /from/file\n  stdout: json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(options{configPath: path, outDir: "/from/flag"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Output.Dir != "/from/flag" {
		t.Errorf("dir: got %q, want /from/flag", cfg.Output.Dir)
	}
	if cfg.Output.Stdout != "json" {
		t.Errorf("stdout: got %q, want json", cfg.Output.Stdout)
	}
}

func TestNewDispatcher_RawStdout(t *testing.T) {
	var buf bytes.Buffer
	out := config.OutputConfig{Dir: t.TempDir(), Filename: "shot.png", NoClipboard: true, Stdout: "raw"}
	d := newDispatcher(out, &buf, slog.Default())
	defer d.Close()

	del, err := d.Deliver(context.Background(), []byte("\x89PNG"), "shot.png")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if del.Copied {
		t.Error("copied with clipboard disabled")
	}
	if filepath.Base(del.SavedPath) != "shot.png" {
		t.Errorf("saved: got %q", del.SavedPath)
	}
	if buf.String() != "\x89PNG" {
		t.Errorf("stdout: got %q", buf.String())
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	if err := report(&buf, slog.Default(), &framecap.SchemeReply{Dark: true}); err != nil {
		t.Fatalf("report: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if got["dark"] != true {
		t.Errorf("dark: got %v", got["dark"])
	}

	buf.Reset()
	if err := report(&buf, slog.Default(), &framecap.CaptureReply{ID: "shot_1"}); err != nil {
		t.Fatalf("report capture: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "" {
		t.Errorf("capture reply written to stdout: %q", buf.String())
	}
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T", v)
}
