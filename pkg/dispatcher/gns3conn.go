package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
)

// gns3ConnectionParams is spec §4.1's "retry-now" escape hatch plus a
// plain status check, exposed as the gns3_connection tool (spec §5's
// acceptance scenario S6: "gns3_connection(action=retry) returns
// immediately").
type gns3ConnectionParams struct {
	Action string `json:"action"`
}

func gns3ConnectionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "gns3_connection",
		Description: "Inspect the GNS3 client's connection state, or force an immediate reauthentication attempt bypassing the backoff timer.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"action": {Type: "string", Enum: []any{"status", "retry"}},
			},
			Required: []string{"action"},
		},
	}
}

type gns3ConnectionHandlers struct {
	d deps
}

func (h *gns3ConnectionHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p gns3ConnectionParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("action")
	}

	switch p.Action {
	case "status":
		return jsonResult(h.d.gns3.Status())
	case "retry":
		h.d.gns3.RetryNow()
		return jsonResult(h.d.gns3.Status())
	default:
		return envelopeResult(errs.New(errs.CodeInvalidParameter, fmt.Sprintf("unknown action %q", p.Action)).
			WithContext(map[string]any{"parameter": "action"}))
	}
}
