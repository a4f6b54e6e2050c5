// Package prompts implements the guided-workflow MCP prompts catalog,
// grounded on the teacher's pkg/prompts/discover.go embed-and-register
// shape.
package prompts

import (
	"context"
	_ "embed"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed troubleshoot_node.md
var troubleshootNode string

//go:embed batch_rewire.md
var batchRewire string

// Register adds the prompts catalog to server.
func Register(server *mcp.Server) {
	server.AddPrompt(&mcp.Prompt{
		Name:        "troubleshoot-node",
		Description: "Guided workflow for diagnosing a node that won't start or respond on its console/SSH session",
	}, promptHandler("Steps for troubleshooting an unresponsive node", troubleshootNode))

	server.AddPrompt(&mcp.Prompt{
		Name:        "batch-rewire",
		Description: "Guided workflow for planning a batch of link connect/disconnect operations safely",
	}, promptHandler("Steps for planning a batch rewire", batchRewire))
}

func promptHandler(description, text string) mcp.PromptHandler {
	return func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: text},
				},
			},
		}, nil
	}
}
