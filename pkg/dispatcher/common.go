// Package dispatcher is the C6 component: the static MCP tool/resource
// catalog and the common handler discipline spec §4.6 describes —
// resolve dependencies from the container, validate parameters, assert
// project state, resolve nodes by name, execute, and shape the result as
// JSON (an envelope on failure). Grounded on the teacher's
// examples/sqlite-vec handler style (AddTool + a typed params struct
// decoded via parseArguments, a *mcp.CallToolResult of TextContent JSON).
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/console"
	"github.com/gns3mcp/gns3-mcp-server/pkg/container"
	"github.com/gns3mcp/gns3-mcp-server/pkg/contextkeys"
	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3proxyclient"
)

// deps bundles the C1-C3 handles every handler needs, resolved from the
// container once at registration time (spec §4.6 step 1) rather than on
// every call, since all three are container singletons/instances for the
// process lifetime.
type deps struct {
	gns3    *gns3.Client
	console *console.Manager
	ssh     *gns3proxyclient.Client
}

func resolveDeps(c *container.Container) deps {
	return deps{
		gns3:    container.MustResolve[*gns3.Client](c),
		console: container.MustResolve[*console.Manager](c),
		ssh:     container.MustResolve[*gns3proxyclient.Client](c),
	}
}

// ProjectTracker tracks the single open project id (spec §3: "exactly one
// project may be opened at a time"), since the GNS3 v3 API itself has no
// "current project" concept — callers open/close by id and the dispatcher
// is the only place that needs to remember which one is active. Exported
// so pkg/gateway's background sweeper can look up the open project before
// asking the SSH proxy to clean up orphaned sessions.
type ProjectTracker struct {
	mu sync.RWMutex
	id string
}

// Get returns the currently open project id, or "" if none is open.
func (p *ProjectTracker) Get() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.id
}

func (p *ProjectTracker) set(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = id
}

func (p *ProjectTracker) clear(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.id == id {
		p.id = ""
	}
}

// peerAddr reads the connecting client's remote address out of ctx, for
// handlers that want to attribute a logged action to its origin. Returns
// "" over stdio, where no HTTP request ever set contextkeys.PeerAddrKey.
func peerAddr(ctx context.Context) string {
	addr, _ := ctx.Value(contextkeys.PeerAddrKey).(string)
	return addr
}

func parseArguments(req *mcp.CallToolRequest, params any) error {
	if req.Params.Arguments == nil {
		return fmt.Errorf("missing arguments")
	}
	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(raw, params); err != nil {
		return fmt.Errorf("failed to parse arguments: %w", err)
	}
	return nil
}

// jsonResult renders v as the tool's successful JSON payload.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(buf)}}}, nil
}

// envelopeResult renders an error envelope as the tool's result (spec §7:
// "tools never raise; they always return either the success payload or an
// envelope"), rather than returning a Go error that the SDK would wrap as
// a protocol-level failure.
func envelopeResult(e *errs.Envelope) (*mcp.CallToolResult, error) {
	buf, _ := json.MarshalIndent(e, "", "  ")
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: string(buf)}}}, nil
}

func missingParam(name string) (*mcp.CallToolResult, error) {
	return envelopeResult(errs.New(errs.CodeMissingParameter, fmt.Sprintf("missing required parameter %q", name)))
}

func invalidParam(name, reason string) (*mcp.CallToolResult, error) {
	return envelopeResult(errs.New(errs.CodeInvalidParameter, fmt.Sprintf("parameter %q invalid: %s", name, reason)).
		WithContext(map[string]any{"parameter": name}))
}

// requireOpenProject asserts a project is open, returning its id (spec
// §4.6 step 3).
func requireOpenProject(cur *ProjectTracker) (string, *mcp.CallToolResult, error) {
	id := cur.Get()
	if id == "" {
		res, err := envelopeResult(errs.New(errs.CodeProjectNotFound, "no project is currently open"))
		return "", res, err
	}
	return id, nil, nil
}

// resolveNode resolves nodeName against projectID's current node list
// (spec §4.6 step 4), returning NODE_NOT_FOUND with the full list of
// available names on miss.
func resolveNode(ctx context.Context, g *gns3.Client, projectID, nodeName string) (*gns3.Node, *mcp.CallToolResult, error) {
	nodes, err := g.ListNodes(ctx, projectID)
	if err != nil {
		res, rerr := envelopeResult(gns3.Envelope(err))
		return nil, res, rerr
	}
	for i := range nodes {
		if nodes[i].Name == nodeName {
			return &nodes[i], nil, nil
		}
	}
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	res, rerr := envelopeResult(errs.New(errs.CodeNodeNotFound, fmt.Sprintf("node %q not found", nodeName)).
		WithContext(map[string]any{"available_nodes": names}))
	return nil, res, rerr
}
