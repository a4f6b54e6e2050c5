package dispatcher

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

// nodeFileParams is spec §6's "Node-file" tool: reads and writes a file
// inside a node's working directory on the GNS3 server (startup-config,
// NVRAM, disk images and the like).
type nodeFileParams struct {
	Action   string `json:"action"`
	NodeName string `json:"node_name"`
	Path     string `json:"path"`
	Content  string `json:"content,omitempty"`
	Base64   bool   `json:"base64,omitempty"`
}

func nodeFileTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "node_file",
		Description: "Read or write a file inside a node's working directory on the GNS3 server, such as startup-config or NVRAM.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"action":    {Type: "string", Enum: []any{"read", "write"}},
				"node_name": {Type: "string"},
				"path":      {Type: "string", Description: "Path relative to the node's working directory"},
				"content":   {Type: "string", Description: "File content, required for write"},
				"base64":    {Type: "boolean", Description: "Whether content is base64-encoded, for binary files"},
			},
			Required: []string{"action", "node_name", "path"},
		},
	}
}

type nodeFileHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *nodeFileHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p nodeFileParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("node_name")
	}
	if p.NodeName == "" {
		return missingParam("node_name")
	}
	if p.Path == "" {
		return missingParam("path")
	}

	projectID, errRes, err := requireOpenProject(h.cur)
	if errRes != nil {
		return errRes, err
	}
	node, errRes, err := resolveNode(ctx, h.d.gns3, projectID, p.NodeName)
	if errRes != nil {
		return errRes, err
	}

	switch p.Action {
	case "read":
		content, err := h.d.gns3.ReadNodeFile(ctx, projectID, node.ID, p.Path)
		if err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(map[string]string{
			"node_name": p.NodeName,
			"path":      p.Path,
			"content":   base64.StdEncoding.EncodeToString(content),
			"base64":    "true",
		})

	case "write":
		var content []byte
		if p.Base64 {
			content, err = base64.StdEncoding.DecodeString(p.Content)
			if err != nil {
				return invalidParam("content", err.Error())
			}
		} else {
			content = []byte(p.Content)
		}
		if err := h.d.gns3.WriteNodeFile(ctx, projectID, node.ID, p.Path, content); err != nil {
			return envelopeResult(gns3.Envelope(err))
		}
		return jsonResult(map[string]string{"node_name": p.NodeName, "path": p.Path, "status": "written"})

	default:
		return envelopeResult(errs.New(errs.CodeInvalidParameter, fmt.Sprintf("unknown action %q", p.Action)).
			WithContext(map[string]any{"parameter": "action"}))
	}
}
