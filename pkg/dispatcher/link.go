package dispatcher

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
	"github.com/gns3mcp/gns3-mcp-server/pkg/linkvalidator"
)

// setConnectionParams is the batch of connect/disconnect operations spec
// §6's "set_connection(ops[])" applies in one two-phase validate+execute
// pass (spec §4.4).
type setConnectionParams struct {
	Ops []setConnectionOp `json:"ops"`
}

type setConnectionOp struct {
	Kind       string              `json:"kind"`
	LinkID     string              `json:"link_id,omitempty"`
	Endpoints  []setConnectionEnd  `json:"endpoints,omitempty"`
}

type setConnectionEnd struct {
	NodeName      string `json:"node_name"`
	AdapterName   string `json:"adapter_name,omitempty"`
	AdapterNumber int    `json:"adapter_number,omitempty"`
	PortNumber    int    `json:"port_number"`
}

func setConnectionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_connection",
		Description: "Apply a batch of link connect/disconnect operations to the open project. Validated as a whole before any change is made; on mid-batch execution failure, returns the operations already completed and the one that failed.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"ops": {
					Type:        "array",
					Description: "Ordered list of {kind: connect|disconnect, endpoints?, link_id?}",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"kind":      {Type: "string", Enum: []any{"connect", "disconnect"}},
							"link_id":   {Type: "string", Description: "Required for disconnect"},
							"endpoints": {Type: "array", Description: "Exactly two endpoints, required for connect"},
						},
						Required: []string{"kind"},
					},
				},
			},
			Required: []string{"ops"},
		},
	}
}

type linkHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *linkHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p setConnectionParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("ops")
	}
	if len(p.Ops) == 0 {
		return missingParam("ops")
	}

	projectID, errRes, err := requireOpenProject(h.cur)
	if errRes != nil {
		return errRes, err
	}

	ops := make([]linkvalidator.Op, len(p.Ops))
	for i, o := range p.Ops {
		switch o.Kind {
		case "connect":
			if len(o.Endpoints) != 2 {
				return invalidParam("ops", "connect requires exactly two endpoints")
			}
			var eps [2]linkvalidator.Endpoint
			for j, e := range o.Endpoints {
				eps[j] = linkvalidator.Endpoint{
					NodeName:      e.NodeName,
					AdapterName:   e.AdapterName,
					AdapterNumber: e.AdapterNumber,
					PortNumber:    e.PortNumber,
				}
			}
			ops[i] = linkvalidator.Op{Kind: linkvalidator.OpConnect, Endpoints: eps}
		case "disconnect":
			if o.LinkID == "" {
				return invalidParam("ops", "disconnect requires link_id")
			}
			ops[i] = linkvalidator.Op{Kind: linkvalidator.OpDisconnect, LinkID: o.LinkID}
		default:
			return invalidParam("ops", "kind must be connect or disconnect")
		}
	}

	nodes, links, err := linkvalidator.FetchTopology(ctx, h.d.gns3, projectID)
	if err != nil {
		return envelopeResult(gns3.Envelope(err))
	}

	result := linkvalidator.Validate(nodes, links, ops)
	if result.Error != nil {
		return envelopeResult(result.Error)
	}

	execResult := linkvalidator.Execute(ctx, h.d.gns3, projectID, result.Ops)
	if execResult.Failed != nil {
		return envelopeResult(linkvalidator.FailedEnvelope(execResult))
	}
	return jsonResult(execResult)
}
