package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// resourceHandlers implements the read-only resource tree (spec §6):
// "…://projects/{id}", "…://projects/{id}/{nodes|links|templates|
// drawings|snapshots}/", "…://sessions/{console|ssh}/[{node_name}
// [/history|/buffer]]", "…://proxy/{status|sessions|registry}". Resources
// never mutate state (spec §4.6: "browsing them has no side effects").
type resourceHandlers struct {
	d deps
}

func resourceContent(uri, mimeType string, v any) (*mcp.ReadResourceResult, error) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mimeType, Text: string(buf)}},
	}, nil
}

func (h *resourceHandlers) projectTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		URITemplate: "gns3://projects/{id}",
		Name:        "project",
		Description: "A single GNS3 project's metadata.",
		MIMEType:    "application/json",
	}
}

func (h *resourceHandlers) readProject(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	id := strings.TrimPrefix(req.Params.URI, "gns3://projects/")
	id = strings.Trim(id, "/")
	projects, err := h.d.gns3.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ID == id {
			return resourceContent(req.Params.URI, "application/json", p)
		}
	}
	return nil, fmt.Errorf("project %q not found", id)
}

// projectCollectionTemplate handles the four list-shaped sub-resources of
// a project: nodes, links, templates, drawings, snapshots.
func (h *resourceHandlers) projectCollectionTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		URITemplate: "gns3://projects/{id}/{collection}/",
		Name:        "project-collection",
		Description: "One of a project's nodes, links, templates, drawings or snapshots.",
		MIMEType:    "application/json",
	}
}

func (h *resourceHandlers) readProjectCollection(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	rest := strings.TrimPrefix(req.Params.URI, "gns3://projects/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed project collection uri %q", req.Params.URI)
	}
	projectID, collection := parts[0], parts[1]

	var v any
	var err error
	switch collection {
	case "nodes":
		v, err = h.d.gns3.ListNodes(ctx, projectID)
	case "links":
		v, err = h.d.gns3.ListLinks(ctx, projectID)
	case "templates":
		v, err = h.d.gns3.ListTemplates(ctx)
	case "drawings":
		v, err = h.d.gns3.ListDrawings(ctx, projectID)
	case "snapshots":
		v, err = h.d.gns3.ListSnapshots(ctx, projectID)
	default:
		return nil, fmt.Errorf("unknown project collection %q", collection)
	}
	if err != nil {
		return nil, err
	}
	return resourceContent(req.Params.URI, "application/json", v)
}

func (h *resourceHandlers) consoleSessionsTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		URITemplate: "gns3://sessions/console/{node_name}",
		Name:        "console-session",
		Description: "A single node's telnet console session status.",
		MIMEType:    "application/json",
	}
}

func (h *resourceHandlers) readConsoleSession(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	nodeName := strings.TrimPrefix(req.Params.URI, "gns3://sessions/console/")
	nodeName = strings.Trim(nodeName, "/")
	if nodeName == "" {
		return resourceContent(req.Params.URI, "application/json", map[string]int{"session_count": h.d.console.SessionCount()})
	}
	status := h.d.console.Status(nodeName)
	return resourceContent(req.Params.URI, "application/json", status)
}

func (h *resourceHandlers) sshSessionsTemplate() *mcp.ResourceTemplate {
	return &mcp.ResourceTemplate{
		URITemplate: "gns3://sessions/ssh/{node_name}",
		Name:        "ssh-session",
		Description: "A single node's SSH session status, or its history/buffer when suffixed.",
		MIMEType:    "application/json",
	}
}

func (h *resourceHandlers) readSSHSession(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	rest := strings.TrimPrefix(req.Params.URI, "gns3://sessions/ssh/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		reg, err := h.d.ssh.Registry(ctx)
		if err != nil {
			return nil, err
		}
		return resourceContent(req.Params.URI, "application/json", reg)
	}

	parts := strings.SplitN(rest, "/", 2)
	nodeName := parts[0]
	if len(parts) == 1 {
		alive, err := h.d.ssh.Status(ctx, nodeName)
		if err != nil {
			return nil, err
		}
		return resourceContent(req.Params.URI, "application/json", map[string]any{"node_name": nodeName, "alive": alive})
	}

	switch parts[1] {
	case "history":
		jobs, err := h.d.ssh.GetHistory(ctx, nodeName, 50, "", "")
		if err != nil {
			return nil, err
		}
		return resourceContent(req.Params.URI, "application/json", jobs)
	case "buffer":
		out, err := h.d.ssh.ReadBuffer(ctx, nodeName, "all", 0)
		if err != nil {
			return nil, err
		}
		return resourceContent(req.Params.URI, "text/plain", out)
	default:
		return nil, fmt.Errorf("unknown ssh session sub-resource %q", parts[1])
	}
}

func (h *resourceHandlers) proxyResources() []*mcp.Resource {
	return []*mcp.Resource{
		{URI: "gns3://proxy/status", Name: "proxy-status", Description: "GNS3 client connection state.", MIMEType: "application/json"},
		{URI: "gns3://proxy/sessions", Name: "proxy-sessions", Description: "Open console session count.", MIMEType: "application/json"},
		{URI: "gns3://proxy/registry", Name: "proxy-registry", Description: "SSH proxy's session registry.", MIMEType: "application/json"},
	}
}

func (h *resourceHandlers) readProxyStatus(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return resourceContent(req.Params.URI, "application/json", h.d.gns3.Status())
}

func (h *resourceHandlers) readProxySessions(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return resourceContent(req.Params.URI, "application/json", map[string]int{"console_sessions": h.d.console.SessionCount()})
}

func (h *resourceHandlers) readProxyRegistry(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	reg, err := h.d.ssh.Registry(ctx)
	if err != nil {
		return nil, err
	}
	return resourceContent(req.Params.URI, "application/json", reg)
}

// readAny dispatches an arbitrary resource URI to the matching handler
// above, for the query_resource tool fallback (spec §6's "Query-resource"
// category, for clients without native MCP resource support).
func (h *resourceHandlers) readAny(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	req := &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
	switch {
	case uri == "gns3://proxy/status":
		return h.readProxyStatus(ctx, req)
	case uri == "gns3://proxy/sessions":
		return h.readProxySessions(ctx, req)
	case uri == "gns3://proxy/registry":
		return h.readProxyRegistry(ctx, req)
	case strings.HasPrefix(uri, "gns3://sessions/console/"):
		return h.readConsoleSession(ctx, req)
	case strings.HasPrefix(uri, "gns3://sessions/ssh/"):
		return h.readSSHSession(ctx, req)
	case strings.HasPrefix(uri, "gns3://projects/"):
		rest := strings.TrimPrefix(uri, "gns3://projects/")
		if strings.Count(strings.Trim(rest, "/"), "/") == 0 {
			return h.readProject(ctx, req)
		}
		return h.readProjectCollection(ctx, req)
	default:
		return nil, fmt.Errorf("unknown resource uri %q", uri)
	}
}
