package dispatcher

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/container"
)

// Register builds every tool and resource handler and attaches them to
// server, resolving shared dependencies from c once (spec §4.6: the fixed
// tool/resource catalog, each bound to a handler). It returns the
// ProjectTracker so pkg/gateway's background sweeper can learn which
// project is open when it asks the SSH proxy to clean up orphaned
// sessions.
func Register(server *mcp.Server, c *container.Container) *ProjectTracker {
	d := resolveDeps(c)
	cur := &ProjectTracker{}

	project := &projectHandlers{d: d, cur: cur}
	server.AddTool(projectTool(), project.handle)

	node := &nodeHandlers{d: d, cur: cur}
	server.AddTool(nodeTool(), node.handle)

	link := &linkHandlers{d: d, cur: cur}
	server.AddTool(setConnectionTool(), link.handle)

	cons := &consoleHandlers{d: d, cur: cur}
	server.AddTool(consoleTool(), cons.handle)

	ssh := &sshHandlers{d: d, cur: cur}
	server.AddTool(sshTool(), ssh.handle)

	drawing := &drawingHandlers{d: d, cur: cur}
	server.AddTool(drawingTool(), drawing.handle)

	snapshot := &snapshotHandlers{d: d, cur: cur}
	server.AddTool(snapshotTool(), snapshot.handle)

	nodeFile := &nodeFileHandlers{d: d, cur: cur}
	server.AddTool(nodeFileTool(), nodeFile.handle)

	topology := &topologyHandlers{d: d, cur: cur}
	server.AddTool(exportTopologyTool(), topology.handle)

	search := &searchHandlers{d: d, cur: cur}
	server.AddTool(searchTool(), search.handle)

	conn := &gns3ConnectionHandlers{d: d}
	server.AddTool(gns3ConnectionTool(), conn.handle)

	resources := &resourceHandlers{d: d}
	server.AddResourceTemplate(resources.projectTemplate(), resources.readProject)
	server.AddResourceTemplate(resources.projectCollectionTemplate(), resources.readProjectCollection)
	server.AddResourceTemplate(resources.consoleSessionsTemplate(), resources.readConsoleSession)
	server.AddResourceTemplate(resources.sshSessionsTemplate(), resources.readSSHSession)
	for _, r := range resources.proxyResources() {
		switch r.URI {
		case "gns3://proxy/status":
			server.AddResource(r, resources.readProxyStatus)
		case "gns3://proxy/sessions":
			server.AddResource(r, resources.readProxySessions)
		case "gns3://proxy/registry":
			server.AddResource(r, resources.readProxyRegistry)
		}
	}

	queryResource := &queryResourceHandlers{resources: resources}
	server.AddTool(queryResourceTool(), queryResource.handle)

	return cur
}
