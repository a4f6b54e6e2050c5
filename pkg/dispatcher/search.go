package dispatcher

import (
	"context"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
)

// searchParams is spec §6's "Search" tool: a case-insensitive substring
// search across the open project's nodes, links and templates, so a
// client can locate an entity without first listing whole collections.
type searchParams struct {
	Query string `json:"query"`
}

func searchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search",
		Description: "Case-insensitive substring search across the open project's node names and template names.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {Type: "string"},
			},
			Required: []string{"query"},
		},
	}
}

type searchResult struct {
	Nodes     []gns3.Node     `json:"nodes"`
	Templates []gns3.Template `json:"templates"`
}

type searchHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *searchHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p searchParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("query")
	}
	if p.Query == "" {
		return missingParam("query")
	}
	query := strings.ToLower(p.Query)

	projectID, errRes, err := requireOpenProject(h.cur)
	if errRes != nil {
		return errRes, err
	}

	nodes, err := h.d.gns3.ListNodes(ctx, projectID)
	if err != nil {
		return envelopeResult(gns3.Envelope(err))
	}
	templates, err := h.d.gns3.ListTemplates(ctx)
	if err != nil {
		return envelopeResult(gns3.Envelope(err))
	}

	var result searchResult
	for _, n := range nodes {
		if strings.Contains(strings.ToLower(n.Name), query) {
			result.Nodes = append(result.Nodes, n)
		}
	}
	for _, t := range templates {
		if strings.Contains(strings.ToLower(t.Name), query) {
			result.Templates = append(result.Templates, t)
		}
	}

	return jsonResult(result)
}

// queryResourceParams is the Query-resource tool fallback (spec §6), for
// clients that can call tools but don't implement native MCP resource
// reads: it dispatches to the same handlers resources.go registers.
type queryResourceParams struct {
	URI string `json:"uri"`
}

func queryResourceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "query_resource",
		Description: "Read a gns3:// resource URI through a tool call, for clients without native MCP resource support.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"uri": {Type: "string"},
			},
			Required: []string{"uri"},
		},
	}
}

type queryResourceHandlers struct {
	resources *resourceHandlers
}

func (h *queryResourceHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p queryResourceParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("uri")
	}
	if p.URI == "" {
		return missingParam("uri")
	}
	res, err := h.resources.readAny(ctx, p.URI)
	if err != nil {
		return invalidParam("uri", err.Error())
	}
	var text string
	for _, c := range res.Contents {
		text += c.Text
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil
}
