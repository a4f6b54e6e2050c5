package dispatcher

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

// topologyExport is the flattened view export_topology returns: every
// node, link, drawing and snapshot of the open project in one document,
// for clients that want a single round-trip rather than four.
type topologyExport struct {
	Project   gns3.Project    `json:"project"`
	Nodes     []gns3.Node     `json:"nodes"`
	Links     []gns3.Link     `json:"links"`
	Drawings  []gns3.Drawing  `json:"drawings"`
	Snapshots []gns3.Snapshot `json:"snapshots"`
}

func exportTopologyTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "export_topology",
		Description: "Export the open project's full topology: nodes, links, drawings and snapshots in one document.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}
}

type topologyHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *topologyHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, errRes, err := requireOpenProject(h.cur)
	if errRes != nil {
		return errRes, err
	}

	projects, err := h.d.gns3.ListProjects(ctx)
	if err != nil {
		return envelopeResult(gns3.Envelope(err))
	}
	var project gns3.Project
	for _, p := range projects {
		if p.ID == projectID {
			project = p
			break
		}
	}

	nodes, err := h.d.gns3.ListNodes(ctx, projectID)
	if err != nil {
		return envelopeResult(gns3.Envelope(err))
	}
	links, err := h.d.gns3.ListLinks(ctx, projectID)
	if err != nil {
		return envelopeResult(gns3.Envelope(err))
	}
	drawings, err := h.d.gns3.ListDrawings(ctx, projectID)
	if err != nil {
		return envelopeResult(gns3.Envelope(err))
	}
	snapshots, err := h.d.gns3.ListSnapshots(ctx, projectID)
	if err != nil {
		return envelopeResult(gns3.Envelope(err))
	}

	return jsonResult(topologyExport{
		Project:   project,
		Nodes:     nodes,
		Links:     links,
		Drawings:  drawings,
		Snapshots: snapshots,
	})
}
