package kit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPDecodeResult holds the decoded request and an optional context enrichment.
type MCPDecodeResult struct {
	Request   any
	EnrichCtx func(context.Context) context.Context
}

// MCPContenter is implemented by responses that render themselves as MCP
// content (images) instead of a JSON text block. MCPContent on a nil
// receiver returns no content.
type MCPContenter interface {
	MCPContent() ([]mcp.Content, error)
}

// RegisterMCPTool registers an Endpoint as an MCP tool on the given server.
// The decode function extracts the typed request from req.Params.Arguments.
// Every call runs with transport "mcp". Endpoint errors become tool errors,
// never protocol errors. An MCPContenter returned together with an error is
// a partial result: its content is kept and the error follows as a text note.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode func(*mcp.CallToolRequest) (*MCPDecodeResult, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = WithTransport(ctx, "mcp")
		decoded, err := decode(req)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		if decoded.EnrichCtx != nil {
			ctx = decoded.EnrichCtx(ctx)
		}

		resp, err := endpoint(ctx, decoded.Request)
		if err != nil {
			if c, ok := resp.(MCPContenter); ok {
				if content, cerr := c.MCPContent(); cerr == nil && len(content) > 0 {
					note := &mcp.TextContent{Text: "error: " + err.Error()}
					return &mcp.CallToolResult{Content: append(content, note)}, nil
				}
			}
			return toolError(errors.New(err.Error())), nil
		}

		if c, ok := resp.(MCPContenter); ok {
			content, err := c.MCPContent()
			if err != nil {
				return toolError(fmt.Errorf("content: %w", err)), nil
			}
			return &mcp.CallToolResult{Content: content}, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
