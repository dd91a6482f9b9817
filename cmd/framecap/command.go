package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/framecap"
	"github.com/hazyhaar/framecap/internal/geometry"
)

// buildCommand maps the one-shot flags to a Command. It returns nil when no
// target was given.
func buildCommand(o options, filename string) (framecap.Command, error) {
	var t framecap.Target
	switch {
	case o.url != "" && o.display >= 0:
		return nil, errors.New("framecap: -url and -display are exclusive")
	case o.url != "":
		t.URL = o.url
	case o.display >= 0:
		d := o.display
		t.Display = &d
	default:
		if o.scheme || o.scale || o.rect != "" {
			return nil, errors.New("framecap: -url or -display is required")
		}
		return nil, nil
	}

	switch {
	case o.scheme && o.scale:
		return nil, errors.New("framecap: -scheme and -scale are exclusive")
	case o.scheme:
		return framecap.DetectSchemeCommand{Target: t}, nil
	case o.scale:
		return framecap.EstimateScaleCommand{Target: t}, nil
	}

	cmd := framecap.CaptureCommand{Target: t, Deliver: true, Filename: filename}
	if o.rect != "" {
		r, err := parseRect(o.rect)
		if err != nil {
			return nil, err
		}
		cmd.Rect = &r
	}
	return cmd, nil
}

// parseRect parses "x,y,w,h" in CSS pixels.
func parseRect(s string) (geometry.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("framecap: rect %q: want x,y,w,h", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("framecap: rect %q: %w", s, err)
		}
		v[i] = f
	}
	if v[2] < 0 || v[3] < 0 {
		return geometry.Rect{}, fmt.Errorf("framecap: rect %q: negative size", s)
	}
	return geometry.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}
