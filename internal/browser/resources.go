package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockResources intercepts requests on page and fails those whose resource
// type is listed. Images and stylesheets are never blocked: a capture needs
// them. The returned router must be stopped when the tab closes.
func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[normalizeResource(t)] = true
	}
	delete(blockSet, "image")
	delete(blockSet, "stylesheet")
	if len(blockSet) == 0 {
		return nil
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if blockSet[normalizeResource(string(h.Request.Type()))] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

// normalizeResource maps config names ("fonts", "media") and CDP resource
// types ("Font", "Media") onto one lowercase singular form.
func normalizeResource(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "images":
		return "image"
	case "fonts":
		return "font"
	case "stylesheets":
		return "stylesheet"
	case "scripts":
		return "script"
	}
	return t
}
