package dispatcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/console"
	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
)

// consoleParams is spec §6's "console(action, node_name, data?, mode?,
// pages?, pattern?, timeout_seconds?)" tool, unifying send/read/
// send_and_wait/status/disconnect against a node's telnet console.
type consoleParams struct {
	Action         string `json:"action"`
	NodeName       string `json:"node_name"`
	Data           string `json:"data,omitempty"`
	DataIsBase64   bool   `json:"data_is_base64,omitempty"`
	Mode           string `json:"mode,omitempty"`
	Pages          int    `json:"pages,omitempty"`
	Pattern        string `json:"pattern,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

func consoleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "console",
		Description: "Send to, read from, or inspect a node's telnet console session. Sessions auto-connect on first use and are swept after 30 minutes of idleness.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"action":          {Type: "string", Enum: []any{"send", "read", "send_and_wait", "status", "disconnect"}},
				"node_name":       {Type: "string"},
				"data":            {Type: "string", Description: "Bytes to send, UTF-8 or base64 per data_is_base64"},
				"data_is_base64":  {Type: "boolean"},
				"mode":            {Type: "string", Enum: []any{"diff", "last_page", "pages", "all"}, Description: "Read mode, defaults to diff"},
				"pages":           {Type: "integer", Description: "Number of pages, for mode=pages"},
				"pattern":         {Type: "string", Description: "Regular expression to wait for, for send_and_wait"},
				"timeout_seconds": {Type: "integer", Description: "send_and_wait timeout, defaults to 10s"},
			},
			Required: []string{"action", "node_name"},
		},
	}
}

type consoleHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *consoleHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p consoleParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("node_name")
	}
	if p.NodeName == "" {
		return missingParam("node_name")
	}

	projectID, errRes, err := requireOpenProject(h.cur)
	if errRes != nil {
		return errRes, err
	}

	node, errRes, err := resolveNode(ctx, h.d.gns3, projectID, p.NodeName)
	if errRes != nil {
		return errRes, err
	}
	if node.ConsolePort == 0 {
		return invalidParam("node_name", "node has no console configured")
	}
	host := node.Host
	if host == "" {
		host = h.d.gns3.Status().Host
	}

	switch p.Action {
	case "status":
		st := h.d.console.Status(p.NodeName)
		return jsonResult(st)

	case "disconnect":
		h.d.console.Disconnect(p.NodeName)
		return jsonResult(map[string]string{"node_name": p.NodeName, "status": "disconnected"})

	case "send":
		data, err := decodeConsoleData(p.Data, p.DataIsBase64)
		if err != nil {
			return invalidParam("data", err.Error())
		}
		if err := h.d.console.Send(p.NodeName, host, node.ConsolePort, data); err != nil {
			return envelopeResult(consoleEnvelope(err))
		}
		return jsonResult(map[string]string{"node_name": p.NodeName, "status": "sent"})

	case "read":
		mode, err := parseReadMode(p.Mode)
		if err != nil {
			return invalidParam("mode", err.Error())
		}
		out, err := h.d.console.Read(p.NodeName, host, node.ConsolePort, mode, p.Pages)
		if err != nil {
			return envelopeResult(consoleEnvelope(err))
		}
		return jsonResult(map[string]string{"node_name": p.NodeName, "output": out})

	case "send_and_wait":
		if p.Pattern == "" {
			return missingParam("pattern")
		}
		pattern, err := regexp.Compile(p.Pattern)
		if err != nil {
			return invalidParam("pattern", err.Error())
		}
		data, err := decodeConsoleData(p.Data, p.DataIsBase64)
		if err != nil {
			return invalidParam("data", err.Error())
		}
		timeout := 10 * time.Second
		if p.TimeoutSeconds > 0 {
			timeout = time.Duration(p.TimeoutSeconds) * time.Second
		}
		out, matched, err := h.d.console.SendAndWait(p.NodeName, host, node.ConsolePort, data, pattern, timeout)
		if err != nil {
			return envelopeResult(consoleEnvelope(err))
		}
		if !matched {
			return envelopeResult(errs.New(errs.CodeTimeout, fmt.Sprintf("pattern %q did not match within %s", p.Pattern, timeout)).
				WithContext(map[string]any{"node_name": p.NodeName, "pattern": p.Pattern, "output": out}))
		}
		return jsonResult(map[string]any{"node_name": p.NodeName, "output": out, "matched": matched})

	default:
		return envelopeResult(errs.New(errs.CodeInvalidParameter, fmt.Sprintf("unknown action %q", p.Action)).
			WithContext(map[string]any{"parameter": "action"}))
	}
}

func decodeConsoleData(data string, isBase64 bool) ([]byte, error) {
	if !isBase64 {
		return []byte(data), nil
	}
	return base64.StdEncoding.DecodeString(data)
}

func parseReadMode(mode string) (console.ReadMode, error) {
	switch mode {
	case "", "diff":
		return console.ModeDiff, nil
	case "last_page":
		return console.ModeLastPage, nil
	case "pages":
		return console.ModePages, nil
	case "all":
		return console.ModeAll, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", mode)
	}
}

// consoleEnvelope wraps a console session error as the C7 envelope shape.
// Console sessions have no typed error taxonomy of their own; connection
// failures are reported as CONSOLE_CONNECTION_FAILED.
func consoleEnvelope(err error) *errs.Envelope {
	return errs.New(errs.CodeConsoleConnectFailed, err.Error())
}
