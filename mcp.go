package framecap

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/framecap/kit"
)

// RegisterMCP registers the framecap tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	ep := kit.Chain(
		kit.WithRequestIDs(requestIDs),
		kit.Logging(s.logger, "mcp"),
	)(s.Endpoint)

	target := map[string]any{
		"type":        "object",
		"description": "Surface to use: a page URL or a physical display index.",
		"properties": map[string]any{
			"url":     map[string]any{"type": "string", "description": "Page URL to open"},
			"display": map[string]any{"type": "integer", "description": "Display index"},
		},
	}
	rect := map[string]any{
		"type":        "object",
		"description": "Region in CSS pixels; omit for the whole viewport. Both sides must be at least 10.",
		"properties": map[string]any{
			"x":      map[string]any{"type": "number"},
			"y":      map[string]any{"type": "number"},
			"width":  map[string]any{"type": "number"},
			"height": map[string]any{"type": "number"},
		},
	}

	register(srv, ep, &mcp.Tool{
		Name:        "framecap_capture",
		Description: "Capture a region of a page or display and frame it on a gradient card. Returns the PNG image.",
		InputSchema: inputSchema(map[string]any{
			"target":    target,
			"rect":      rect,
			"watermark": map[string]any{"type": "string", "description": "Watermark for this capture; empty disables it"},
			"deliver":   map[string]any{"type": "boolean", "description": "Also copy to the clipboard and save to disk"},
			"filename":  map[string]any{"type": "string", "description": "Suggested filename when delivering"},
		}, []string{"target"}),
	}, func() Command { return &CaptureCommand{} })

	register(srv, ep, &mcp.Tool{
		Name:        "framecap_detect_scheme",
		Description: "Report whether a page or display renders a dark color scheme, and which signal decided it.",
		InputSchema: inputSchema(map[string]any{"target": target}, []string{"target"}),
	}, func() Command { return &DetectSchemeCommand{} })

	register(srv, ep, &mcp.Tool{
		Name:        "framecap_estimate_scale",
		Description: "Estimate the super-sampling factor for a capture of a page, clamped to the pixel budget.",
		InputSchema: inputSchema(map[string]any{"target": target}, []string{"target"}),
	}, func() Command { return &EstimateScaleCommand{} })

	register(srv, ep, &mcp.Tool{
		Name:        "framecap_get_watermark",
		Description: "Read the stored watermark text.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func() Command { return &GetWatermarkCommand{} })

	register(srv, ep, &mcp.Tool{
		Name:        "framecap_set_watermark",
		Description: "Store the watermark drawn under framed screenshots. Markup is stripped; empty clears it.",
		InputSchema: inputSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "Watermark text"},
		}, []string{"text"}),
	}, func() Command { return &SetWatermarkCommand{} })
}

// register decodes the tool arguments into a fresh command from newCmd.
// Pointer commands are dereferenced before execution.
func register(srv *mcp.Server, ep kit.Endpoint, tool *mcp.Tool, newCmd func() Command) {
	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		cmd := newCmd()
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, cmd); err != nil {
				return nil, err
			}
		}
		return &kit.MCPDecodeResult{Request: deref(cmd)}, nil
	}
	kit.RegisterMCPTool(srv, tool, ep, decode)
}

func deref(c Command) Command {
	switch v := c.(type) {
	case *CaptureCommand:
		return *v
	case *DetectSchemeCommand:
		return *v
	case *EstimateScaleCommand:
		return *v
	case *GetWatermarkCommand:
		return *v
	case *SetWatermarkCommand:
		return *v
	}
	return c
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// ServeMCP runs the tools over stdio until ctx is done.
func (s *Service) ServeMCP(ctx context.Context, version string) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "framecap", Version: version}, nil)
	s.RegisterMCP(srv)
	return srv.Run(ctx, &mcp.StdioTransport{})
}
