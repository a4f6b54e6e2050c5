package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

// nodeParams unifies create/delete/start/stop/suspend/reload/configure on
// a node (spec §6: "node(action, name, template?, position?, locked?,
// ports?, ...) unifying start/stop/suspend/reload/create/delete/configure").
type nodeParams struct {
	Action   string         `json:"action"`
	Name     string         `json:"name,omitempty"`
	Template string         `json:"template,omitempty"`
	Position *gns3.Position `json:"position,omitempty"`
	Locked   *bool          `json:"locked,omitempty"`
	Ports    []gns3.Port    `json:"ports,omitempty"`
}

func nodeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "node",
		Description: "List, create, delete, start, stop, suspend, reload or reconfigure a node in the open project.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"action":   {Type: "string", Enum: []any{"list", "create", "delete", "start", "stop", "suspend", "reload", "configure"}},
				"name":     {Type: "string", Description: "Node name, unique within the open project"},
				"template": {Type: "string", Description: "Template name to instantiate from, required for create"},
				"position": {Type: "object", Description: "Canvas position {x,y,z}"},
				"locked":   {Type: "boolean"},
				"ports":    {Type: "array", Description: "Port declarations, for configure"},
			},
			Required: []string{"action"},
		},
	}
}

type nodeHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *nodeHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p nodeParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("action")
	}

	projectID, errRes, err := requireOpenProject(h.cur)
	if errRes != nil {
		return errRes, err
	}

	if p.Action == "list" {
		nodes, err := h.d.gns3.ListNodes(ctx, projectID)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(nodes)
	}

	if p.Action == "create" {
		if p.Name == "" {
			return missingParam("name")
		}
		if p.Template == "" {
			return missingParam("template")
		}
		spec := map[string]any{"name": p.Name, "template": p.Template}
		if p.Position != nil {
			spec["x"], spec["y"], spec["z"] = p.Position.X, p.Position.Y, p.Position.Z
		}
		node, err := h.d.gns3.CreateNode(ctx, projectID, spec)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(node)
	}

	if p.Name == "" {
		return missingParam("name")
	}
	node, errRes, err := resolveNode(ctx, h.d.gns3, projectID, p.Name)
	if errRes != nil {
		return errRes, err
	}

	switch p.Action {
	case "delete":
		if err := h.d.gns3.DeleteNode(ctx, projectID, node.ID); err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(map[string]string{"name": p.Name, "status": "deleted"})

	case "start":
		if err := h.d.gns3.StartNode(ctx, projectID, node.ID); err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(map[string]string{"name": p.Name, "status": "started"})

	case "stop":
		if err := h.d.gns3.StopNode(ctx, projectID, node.ID); err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(map[string]string{"name": p.Name, "status": "stopped"})

	case "suspend":
		if err := h.d.gns3.SuspendNode(ctx, projectID, node.ID); err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(map[string]string{"name": p.Name, "status": "suspended"})

	case "reload":
		if err := h.d.gns3.ReloadNode(ctx, projectID, node.ID); err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(map[string]string{"name": p.Name, "status": "reloaded"})

	case "configure":
		patch := map[string]any{}
		if p.Locked != nil {
			patch["locked"] = *p.Locked
		}
		if p.Position != nil {
			patch["x"], patch["y"], patch["z"] = p.Position.X, p.Position.Y, p.Position.Z
		}
		if p.Ports != nil {
			patch["ports"] = p.Ports
		}
		updated, err := h.d.gns3.UpdateNode(ctx, projectID, node.ID, patch)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(updated)

	default:
		return envelopeResult(errs.New(errs.CodeInvalidParameter, fmt.Sprintf("unknown action %q", p.Action)).
			WithContext(map[string]any{"parameter": "action"}))
	}
}
