// Package gns3proxyclient is the main process's HTTP client for the
// SSH-proxy's REST API (spec §6), backed by the same
// github.com/hashicorp/go-retryablehttp client used by pkg/gns3, since
// both are "reconnecting HTTP client to a peer service" concerns.
package gns3proxyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/sshproxy"
)

// Client talks to a gns3-sshproxy instance over HTTP.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// New constructs a client pointed at baseURL (e.g. "http://127.0.0.1:8022").
func New(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = log.New(io.Discard, "", 0)
	return &Client{baseURL: baseURL, http: rc}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &unreachableError{cause: err, url: c.baseURL}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return &statusError{status: resp.StatusCode, body: respBody}
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}
	return nil
}

type unreachableError struct {
	cause error
	url   string
}

func (e *unreachableError) Error() string { return fmt.Sprintf("ssh proxy %s unreachable: %v", e.url, e.cause) }
func (e *unreachableError) Unwrap() error { return e.cause }

type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string { return fmt.Sprintf("ssh proxy returned %d: %s", e.status, e.body) }

// Envelope maps a client error into the C7 envelope, per spec §4.3's
// SSH_PROXY_UNREACHABLE class distinct from a single session's own
// SSH_CONNECTION_FAILED.
func Envelope(err error) *errs.Envelope {
	var unreachable *unreachableError
	if as, ok := err.(*unreachableError); ok {
		unreachable = as
	}
	if unreachable != nil {
		return errs.Wrap(errs.CodeSSHProxyUnreachable, err, "SSH proxy is unreachable").
			WithContext(map[string]any{"url": unreachable.url})
	}
	return errs.Wrap(errs.CodeSSHConnectionFailed, err, "SSH proxy call failed")
}

// --- typed calls mirroring pkg/sshproxy's HTTP surface ---

func (c *Client) Configure(ctx context.Context, nodeName string, spec sshproxy.DeviceSpec, forceRecreate bool) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
		Error     string `json:"error"`
	}
	body := map[string]any{
		"node_name":      nodeName,
		"device_spec":    spec,
		"force_recreate": forceRecreate,
	}
	if err := c.doJSON(ctx, http.MethodPost, "/ssh/configure", body, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("%s", out.Error)
	}
	return out.SessionID, nil
}

func (c *Client) SendCommand(ctx context.Context, nodeName, command string, readTimeout, waitTimeout time.Duration, expectString string) (sshproxy.Job, error) {
	var out sshproxy.Job
	body := map[string]any{
		"node_name":     nodeName,
		"command":       command,
		"read_timeout":  readTimeout,
		"wait_timeout":  waitTimeout,
		"expect_string": expectString,
	}
	err := c.doJSON(ctx, http.MethodPost, "/ssh/send_command", body, &out)
	return out, err
}

func (c *Client) SendConfigSet(ctx context.Context, nodeName string, commands []string, timeout time.Duration) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	body := map[string]any{"node_name": nodeName, "commands": commands, "timeout": timeout}
	err := c.doJSON(ctx, http.MethodPost, "/ssh/send_config_set", body, &out)
	return out.Output, err
}

func (c *Client) Status(ctx context.Context, nodeName string) (bool, error) {
	var out struct {
		Alive bool `json:"alive"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/ssh/status/"+nodeName, nil, &out)
	return out.Alive, err
}

func (c *Client) ReadBuffer(ctx context.Context, nodeName, mode string, pages int) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	path := fmt.Sprintf("/ssh/buffer/%s?mode=%s&pages=%d", nodeName, mode, pages)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out.Output, err
}

func (c *Client) GetHistory(ctx context.Context, nodeName string, limit int, search, since string) ([]sshproxy.Job, error) {
	var out []sshproxy.Job
	path := fmt.Sprintf("/ssh/history/%s?limit=%d&search=%s&since=%s", nodeName, limit, search, since)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetJobStatus(ctx context.Context, nodeName, jobID string) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodGet, "/ssh/job/"+nodeName+"/"+jobID, nil, &out)
	return out, err
}

func (c *Client) Cleanup(ctx context.Context, scope string, liveNodes []string) (int, error) {
	var out struct {
		CleanedUp int `json:"cleaned_up"`
	}
	body := map[string]any{"scope": scope, "live_nodes": liveNodes}
	err := c.doJSON(ctx, http.MethodPost, "/ssh/cleanup", body, &out)
	return out.CleanedUp, err
}

func (c *Client) Registry(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodGet, "/proxy/registry", nil, &out)
	return out, err
}
