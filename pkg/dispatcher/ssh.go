package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3proxyclient"
	"github.com/gns3mcp/gns3-mcp-server/pkg/sshproxy"
)

// sshParams is spec §6's "ssh(action, node_name, ...)" tool, unifying the
// SSH-proxy's whole surface: configure/send_command/send_config_set/
// get_status/get_history/get_job_status/read_buffer/cleanup.
type sshParams struct {
	Action         string   `json:"action"`
	NodeName       string   `json:"node_name,omitempty"`
	DeviceType     string   `json:"device_type,omitempty"`
	Host           string   `json:"host,omitempty"`
	Port           int      `json:"port,omitempty"`
	Username       string   `json:"username,omitempty"`
	Password       string   `json:"password,omitempty"`
	Secret         string   `json:"secret,omitempty"`
	ForceRecreate  bool     `json:"force_recreate,omitempty"`
	Command        string   `json:"command,omitempty"`
	Commands       []string `json:"commands,omitempty"`
	ExpectString   string   `json:"expect_string,omitempty"`
	ReadTimeout    int      `json:"read_timeout_seconds,omitempty"`
	WaitTimeout    *int     `json:"wait_timeout_seconds"`
	Mode           string   `json:"mode,omitempty"`
	Pages          int      `json:"pages,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Search         string   `json:"search,omitempty"`
	Since          string   `json:"since,omitempty"`
	JobID          string   `json:"job_id,omitempty"`
	Scope          string   `json:"scope,omitempty"`
}

func sshTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "ssh",
		Description: "Drive a node's SSH session through the companion gns3-sshproxy process: configure a device, send commands or config sets, inspect history/buffer/job status, or clean up sessions.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"action":                {Type: "string", Enum: []any{"configure", "send_command", "send_config_set", "get_status", "get_history", "get_job_status", "read_buffer", "cleanup"}},
				"node_name":             {Type: "string"},
				"device_type":           {Type: "string", Description: "Netmiko-style device type, for configure"},
				"host":                  {Type: "string"},
				"port":                  {Type: "integer"},
				"username":              {Type: "string"},
				"password":              {Type: "string"},
				"secret":                {Type: "string", Description: "Enable secret, optional"},
				"force_recreate":        {Type: "boolean"},
				"command":               {Type: "string"},
				"commands":              {Type: "array", Description: "Ordered config lines, for send_config_set"},
				"expect_string":         {Type: "string"},
				"read_timeout_seconds":  {Type: "integer"},
				"wait_timeout_seconds":  {Type: "integer"},
				"mode":                  {Type: "string", Enum: []any{"diff", "last_page", "pages", "all"}},
				"pages":                 {Type: "integer"},
				"limit":                 {Type: "integer"},
				"search":                {Type: "string"},
				"since":                 {Type: "string"},
				"job_id":                {Type: "string"},
				"scope":                 {Type: "string", Enum: []any{"node", "orphaned", "all"}},
			},
			Required: []string{"action"},
		},
	}
}

type sshHandlers struct {
	d   deps
	cur *ProjectTracker
}

func (h *sshHandlers) handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p sshParams
	if err := parseArguments(req, &p); err != nil {
		return missingParam("action")
	}

	switch p.Action {
	case "configure":
		if p.NodeName == "" {
			return missingParam("node_name")
		}
		spec := sshproxy.DeviceSpec{
			DeviceType: p.DeviceType,
			Host:       p.Host,
			Port:       p.Port,
			Username:   p.Username,
			Password:   p.Password,
			Secret:     p.Secret,
		}
		sessionID, err := h.d.ssh.Configure(ctx, p.NodeName, spec, p.ForceRecreate)
		if err != nil {
			return envelopeResult(gns3proxyclient.Envelope(err))
		}
		return jsonResult(map[string]string{"node_name": p.NodeName, "session_id": sessionID})

	case "send_command":
		if p.NodeName == "" {
			return missingParam("node_name")
		}
		if p.Command == "" {
			return missingParam("command")
		}
		readTimeout := durationOrDefault(p.ReadTimeout, 10*time.Second)
		waitTimeout := waitDurationOrDefault(p.WaitTimeout, 30*time.Second)
		job, err := h.d.ssh.SendCommand(ctx, p.NodeName, p.Command, readTimeout, waitTimeout, p.ExpectString)
		if err != nil {
			return envelopeResult(gns3proxyclient.Envelope(err))
		}
		return jsonResult(job)

	case "send_config_set":
		if p.NodeName == "" {
			return missingParam("node_name")
		}
		if len(p.Commands) == 0 {
			return missingParam("commands")
		}
		waitSeconds := 0
		if p.WaitTimeout != nil {
			waitSeconds = *p.WaitTimeout
		}
		timeout := durationOrDefault(waitSeconds, 30*time.Second)
		out, err := h.d.ssh.SendConfigSet(ctx, p.NodeName, p.Commands, timeout)
		if err != nil {
			return envelopeResult(gns3proxyclient.Envelope(err))
		}
		return jsonResult(map[string]string{"node_name": p.NodeName, "output": out})

	case "get_status":
		if p.NodeName == "" {
			return missingParam("node_name")
		}
		alive, err := h.d.ssh.Status(ctx, p.NodeName)
		if err != nil {
			return envelopeResult(gns3proxyclient.Envelope(err))
		}
		return jsonResult(map[string]any{"node_name": p.NodeName, "alive": alive})

	case "read_buffer":
		if p.NodeName == "" {
			return missingParam("node_name")
		}
		mode := p.Mode
		if mode == "" {
			mode = "diff"
		}
		out, err := h.d.ssh.ReadBuffer(ctx, p.NodeName, mode, p.Pages)
		if err != nil {
			return envelopeResult(gns3proxyclient.Envelope(err))
		}
		return jsonResult(map[string]string{"node_name": p.NodeName, "output": out})

	case "get_history":
		if p.NodeName == "" {
			return missingParam("node_name")
		}
		limit := p.Limit
		if limit <= 0 {
			limit = 50
		}
		jobs, err := h.d.ssh.GetHistory(ctx, p.NodeName, limit, p.Search, p.Since)
		if err != nil {
			return envelopeResult(gns3proxyclient.Envelope(err))
		}
		return jsonResult(jobs)

	case "get_job_status":
		if p.NodeName == "" {
			return missingParam("node_name")
		}
		if p.JobID == "" {
			return missingParam("job_id")
		}
		status, err := h.d.ssh.GetJobStatus(ctx, p.NodeName, p.JobID)
		if err != nil {
			return envelopeResult(gns3proxyclient.Envelope(err))
		}
		return jsonResult(status)

	case "cleanup":
		scope := p.Scope
		if scope == "" {
			scope = "orphaned"
		}
		var liveNodes []string
		if p.NodeName != "" {
			liveNodes = []string{p.NodeName}
		} else if scope == "orphaned" {
			// "Orphaned" means "owning node no longer exists" (spec.md:112);
			// without an explicit node_name we need the open project's
			// current node list to tell orphaned sessions from merely idle
			// ones, otherwise every live session looks orphaned.
			projectID, errRes, err := requireOpenProject(h.cur)
			if errRes != nil {
				return errRes, err
			}
			nodes, lerr := h.d.gns3.ListNodes(ctx, projectID)
			if lerr != nil {
				return envelopeResult(gns3.Envelope(lerr))
			}
			liveNodes = make([]string, 0, len(nodes))
			for _, n := range nodes {
				liveNodes = append(liveNodes, n.Name)
			}
		}
		count, err := h.d.ssh.Cleanup(ctx, scope, liveNodes)
		if err != nil {
			return envelopeResult(gns3proxyclient.Envelope(err))
		}
		return jsonResult(map[string]int{"cleaned_up": count})

	default:
		return envelopeResult(errs.New(errs.CodeInvalidParameter, fmt.Sprintf("unknown action %q", p.Action)).
			WithContext(map[string]any{"parameter": "action"}))
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// waitDurationOrDefault implements spec §4.3's adaptive sync/async contract:
// an omitted wait_timeout_seconds falls back to a generous synchronous
// wait, but an explicitly supplied 0 must select asynchronous execution
// rather than being folded into "unset" (that bug breaks S4 outright).
func waitDurationOrDefault(seconds *int, fallback time.Duration) time.Duration {
	if seconds == nil {
		return fallback
	}
	if *seconds <= 0 {
		return 0
	}
	return time.Duration(*seconds) * time.Second
}
