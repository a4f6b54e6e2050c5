package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

// snapshotParams is spec §6's "Snapshot" tool: point-in-time project
// state, list/create/restore.
type snapshotParams struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
}

func snapshotTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "snapshot",
		Description: "List, create or restore point-in-time snapshots of the open project's topology.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"action": {Type: "string", Enum: []any{"list", "create", "restore"}},
				"id":     {Type: "string", Description: "Snapshot id, required for restore"},
				"name":   {Type: "string", Description: "Snapshot name, required for create"},
			},
			Required: []string{"action"},
		},
	}
}

type snapshotHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *snapshotHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p snapshotParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("action")
	}

	projectID, errRes, err := requireOpenProject(h.cur)
	if errRes != nil {
		return errRes, err
	}

	switch p.Action {
	case "list":
		snaps, err := h.d.gns3.ListSnapshots(ctx, projectID)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(snaps)

	case "create":
		if p.Name == "" {
			return missingParam("name")
		}
		snap, err := h.d.gns3.CreateSnapshot(ctx, projectID, p.Name)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(snap)

	case "restore":
		if p.ID == "" {
			return missingParam("id")
		}
		if err := h.d.gns3.RestoreSnapshot(ctx, projectID, p.ID); err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(map[string]string{"id": p.ID, "status": "restored"})

	default:
		return envelopeResult(errs.New(errs.CodeInvalidParameter, fmt.Sprintf("unknown action %q", p.Action)).
			WithContext(map[string]any{"parameter": "action"}))
	}
}
