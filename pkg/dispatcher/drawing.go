package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

// drawingParams is spec §6's "Drawing" tool: annotations on the canvas,
// independent of the node/link topology.
type drawingParams struct {
	Action   string `json:"action"`
	ID       string `json:"id,omitempty"`
	SVG      string `json:"svg,omitempty"`
	Text     string `json:"text,omitempty"`
	X        int    `json:"x,omitempty"`
	Y        int    `json:"y,omitempty"`
	Z        int    `json:"z,omitempty"`
}

func drawingTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "drawing",
		Description: "List, create or delete free-form canvas drawings (rectangles, text, SVG) in the open project.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"action": {Type: "string", Enum: []any{"list", "create", "delete"}},
				"id":     {Type: "string", Description: "Drawing id, required for delete"},
				"svg":    {Type: "string", Description: "Raw SVG element content, for create"},
				"text":   {Type: "string", Description: "Plain text shorthand, for create"},
				"x":      {Type: "integer"},
				"y":      {Type: "integer"},
				"z":      {Type: "integer"},
			},
			Required: []string{"action"},
		},
	}
}

type drawingHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *drawingHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p drawingParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("action")
	}

	projectID, errRes, err := requireOpenProject(h.cur)
	if errRes != nil {
		return errRes, err
	}

	switch p.Action {
	case "list":
		drawings, err := h.d.gns3.ListDrawings(ctx, projectID)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(drawings)

	case "create":
		if p.SVG == "" && p.Text == "" {
			return missingParam("svg")
		}
		svg := p.SVG
		if svg == "" {
			svg = fmt.Sprintf(`<text fill="#000000" font-size="12">%s</text>`, p.Text)
		}
		d := gns3.Drawing{SVG: svg, X: p.X, Y: p.Y, Z: p.Z}
		created, err := h.d.gns3.CreateDrawing(ctx, projectID, d)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(created)

	case "delete":
		if p.ID == "" {
			return missingParam("id")
		}
		if err := h.d.gns3.DeleteDrawing(ctx, projectID, p.ID); err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(map[string]string{"id": p.ID, "status": "deleted"})

	default:
		return envelopeResult(errs.New(errs.CodeInvalidParameter, fmt.Sprintf("unknown action %q", p.Action)).
			WithContext(map[string]any{"parameter": "action"}))
	}
}
