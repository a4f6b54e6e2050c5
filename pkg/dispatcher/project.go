package dispatcher

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/contextkeys"
	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

// projectParams mirrors spec §6's "project(action, ...)" unification of
// list/open/create/close into a single tool.
type projectParams struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
}

func projectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "project",
		Description: "List, open, create or close GNS3 projects. Exactly one project may be open at a time.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"action": {Type: "string", Enum: []any{"list", "open", "create", "close"}},
				"id":     {Type: "string", Description: "Project id, required for open/close"},
				"name":   {Type: "string", Description: "Project name, required for create"},
			},
			Required: []string{"action"},
		},
	}
}

type projectHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *projectHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p projectParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("action")
	}

	switch p.Action {
	case "list":
		projects, err := h.d.gns3.ListProjects(ctx)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(projects)

	case "open":
		if p.ID == "" {
			return missingParam("id")
		}
		proj, err := h.d.gns3.OpenProject(ctx, p.ID)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		h.cur.set(proj.ID)
		log.With(map[string]any{"project_id": proj.ID, "peer": peerAddr(ctx)}).Log("project opened")
		return jsonResult(proj)

	case "create":
		if p.Name == "" {
			return missingParam("name")
		}
		proj, err := h.d.gns3.CreateProject(ctx, p.Name)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(proj)

	case "close":
		id := p.ID
		if id == "" {
			id = h.cur.Get()
		}
		if id == "" {
			return missingParam("id")
		}
		if err := h.d.gns3.CloseProject(ctx, id); err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		h.cur.clear(id)
		log.With(map[string]any{"project_id": id, "peer": peerAddr(ctx)}).Log("project closed")
		return jsonResult(map[string]string{"id": id, "status": "closed"})

	default:
		return envelopeResult(errs.New(errs.CodeInvalidParameter, fmt.Sprintf("unknown action %q", p.Action)).
			WithContext(map[string]any{"parameter": "action"}))
	}
}
