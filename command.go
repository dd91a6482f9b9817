// CLAUDE:SUMMARY Closed command set decoded by the CLI, HTTP and MCP surfaces; one handler method per variant.
package framecap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/framecap/internal/geometry"
)

// Target names the surface a command runs against: a page URL or a
// physical display index.
type Target struct {
	URL     string `json:"url,omitempty"`
	Display *int   `json:"display,omitempty"`
}

func (t Target) String() string {
	if t.URL != "" {
		return t.URL
	}
	if t.Display != nil {
		return fmt.Sprintf("display:%d", *t.Display)
	}
	return "<none>"
}

func (t Target) valid() bool { return t.URL != "" || t.Display != nil }

// Command is the closed set of operations. Only this package can add
// variants; CommandHandler has one method per variant.
type Command interface {
	accept(ctx context.Context, h CommandHandler) (any, error)
}

// CommandHandler executes each command variant.
type CommandHandler interface {
	HandleCapture(ctx context.Context, c CaptureCommand) (*CaptureReply, error)
	HandleDetectScheme(ctx context.Context, c DetectSchemeCommand) (*SchemeReply, error)
	HandleEstimateScale(ctx context.Context, c EstimateScaleCommand) (*ScaleReply, error)
	HandleGetWatermark(ctx context.Context, c GetWatermarkCommand) (*WatermarkReply, error)
	HandleSetWatermark(ctx context.Context, c SetWatermarkCommand) (*WatermarkReply, error)
}

// CaptureCommand produces a framed screenshot of Target. A nil Rect captures
// the whole viewport.
type CaptureCommand struct {
	Target Target         `json:"target"`
	Rect   *geometry.Rect `json:"rect,omitempty"`
	// Watermark overrides the stored preference when non-nil. An empty
	// string disables the watermark for this capture.
	Watermark *string `json:"watermark,omitempty"`
	// Deliver hands the PNG to the dispatcher (clipboard, file, sinks).
	Deliver  bool   `json:"deliver,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// DetectSchemeCommand reports whether Target renders a dark color scheme.
type DetectSchemeCommand struct {
	Target Target `json:"target"`
}

// EstimateScaleCommand reports the super-sampling factor for Target.
type EstimateScaleCommand struct {
	Target Target `json:"target"`
}

// GetWatermarkCommand reads the stored watermark.
type GetWatermarkCommand struct{}

// SetWatermarkCommand stores a watermark.
type SetWatermarkCommand struct {
	Text string `json:"text"`
}

func (c CaptureCommand) accept(ctx context.Context, h CommandHandler) (any, error) {
	return h.HandleCapture(ctx, c)
}
func (c DetectSchemeCommand) accept(ctx context.Context, h CommandHandler) (any, error) {
	return h.HandleDetectScheme(ctx, c)
}
func (c EstimateScaleCommand) accept(ctx context.Context, h CommandHandler) (any, error) {
	return h.HandleEstimateScale(ctx, c)
}
func (c GetWatermarkCommand) accept(ctx context.Context, h CommandHandler) (any, error) {
	return h.HandleGetWatermark(ctx, c)
}
func (c SetWatermarkCommand) accept(ctx context.Context, h CommandHandler) (any, error) {
	return h.HandleSetWatermark(ctx, c)
}

// CaptureReply describes a framed screenshot.
type CaptureReply struct {
	ID             string  `json:"id"`
	PNG            []byte  `json:"-"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	EffectiveScale float64 `json:"effective_scale"`
	Dark           bool    `json:"dark"`
	Heuristic      string  `json:"heuristic,omitempty"`
	SavedPath      string  `json:"saved_path,omitempty"`
	Copied         bool    `json:"copied,omitempty"`
	// DeliveryError is set when the PNG was framed but not delivered.
	DeliveryError string `json:"delivery_error,omitempty"`
}

// MCPContent returns the PNG as image content followed by the metadata.
func (r *CaptureReply) MCPContent() ([]mcp.Content, error) {
	if r == nil || len(r.PNG) == 0 {
		return nil, nil
	}
	meta, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return []mcp.Content{
		&mcp.ImageContent{Data: r.PNG, MIMEType: "image/png"},
		&mcp.TextContent{Text: string(meta)},
	}, nil
}

// SchemeReply is the color-scheme verdict.
type SchemeReply struct {
	Dark      bool   `json:"dark"`
	Heuristic string `json:"heuristic,omitempty"`
}

// ScaleReply is the estimated super-sampling factor and the pixel budget it
// is clamped to.
type ScaleReply struct {
	Requested   float64 `json:"requested"`
	Effective   float64 `json:"effective"`
	AdaptiveMax float64 `json:"adaptive_max"`
	DPR         float64 `json:"dpr"`
}

// WatermarkReply carries the stored watermark.
type WatermarkReply struct {
	Text     string `json:"text"`
	FirstUse bool   `json:"first_use,omitempty"`
}
