package gns3

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
)

// Config holds the connection settings for a GNS3 peer (spec §6
// Configuration surface).
type Config struct {
	Host             string
	Port             int
	User             string
	Password         string
	UseTLS           bool
	VerifyTLS        bool
	MutatingTimeout  time.Duration // default 10s
	ListingTimeout   time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.MutatingTimeout == 0 {
		c.MutatingTimeout = 10 * time.Second
	}
	if c.ListingTimeout == 0 {
		c.ListingTimeout = 30 * time.Second
	}
	return c
}

func (c Config) baseURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/v3", scheme, c.Host, c.Port)
}

// Client is the C1 GNS3 HTTP client. It is safe for concurrent use.
type Client struct {
	cfg Config

	// readHTTP retries idempotent GETs on transient 5xx/connection errors
	// (spec §7 "recover locally"); writeHTTP never retries mutating calls.
	readHTTP  *retryablehttp.Client
	writeHTTP *retryablehttp.Client

	auth *tokenManager
}

// New constructs a Client in the disconnected state. Authentication does
// NOT happen here; call StartAuthLoop to begin the background token
// lifecycle (spec §4.1 startup policy: authentication must not block
// server startup).
func New(cfg Config) *Client {
	cfg = cfg.withDefaults()

	mkHTTP := func(retries int) *retryablehttp.Client {
		rc := retryablehttp.NewClient()
		rc.RetryMax = retries
		rc.RetryWaitMin = 200 * time.Millisecond
		rc.RetryWaitMax = 2 * time.Second
		rc.Logger = log.New(io.Discard, "", 0)
		if !cfg.VerifyTLS {
			rc.HTTPClient.Transport = insecureTransport()
		}
		return rc
	}

	c := &Client{
		cfg:       cfg,
		readHTTP:  mkHTTP(3),
		writeHTTP: mkHTTP(0),
	}
	c.auth = newTokenManager(c)
	return c
}

// Status returns the current connection-state snapshot.
func (c *Client) Status() Status { return c.auth.status() }

// StartAuthLoop begins the background authentication/refresh loop. It
// returns immediately; the loop runs in its own goroutine until ctx is
// cancelled.
func (c *Client) StartAuthLoop(ctx context.Context) { go c.auth.run(ctx) }

// RetryNow bypasses the backoff timer and attempts authentication
// immediately (the gns3_connection retry-now operation, spec §4.1/S6).
func (c *Client) RetryNow() { c.auth.retryNow() }

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, mutating bool) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		rdr = bytes.NewReader(buf)
	}

	timeout := c.cfg.ListingTimeout
	httpClient := c.readHTTP
	if mutating {
		timeout = c.cfg.MutatingTimeout
		httpClient = c.writeHTTP
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.cfg.baseURL()+path, rdr)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := c.auth.currentToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &unreachableError{cause: err, host: c.cfg.Host, port: c.cfg.Port}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		c.auth.markExpired()
		return &apiStatusError{status: resp.StatusCode, body: respBody}
	}

	if resp.StatusCode >= 300 {
		return &apiStatusError{status: resp.StatusCode, body: respBody}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}
	return nil
}

// doRaw is doJSON's sibling for endpoints that serve or accept raw bytes
// rather than a JSON document (spec §4.1 "read/write Docker node files"):
// it shares the timeout/retry/auth plumbing but never marshals the
// request body or unmarshals the response, since running file contents
// through encoding/json would base64-encode/decode them as a JSON string
// and corrupt anything that isn't already text.
func (c *Client) doRaw(ctx context.Context, method, path string, body []byte, mutating bool) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	timeout := c.cfg.ListingTimeout
	httpClient := c.readHTTP
	if mutating {
		timeout = c.cfg.MutatingTimeout
		httpClient = c.writeHTTP
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.cfg.baseURL()+path, rdr)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if tok := c.auth.currentToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &unreachableError{cause: err, host: c.cfg.Host, port: c.cfg.Port}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		c.auth.markExpired()
		return nil, &apiStatusError{status: resp.StatusCode, body: respBody}
	}
	if resp.StatusCode >= 300 {
		return nil, &apiStatusError{status: resp.StatusCode, body: respBody}
	}
	return respBody, nil
}

// --- Project operations ---

func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	return out, c.doJSON(ctx, http.MethodGet, "/projects", nil, &out, false)
}

func (c *Client) OpenProject(ctx context.Context, id string) (*Project, error) {
	var out Project
	return &out, c.doJSON(ctx, http.MethodPost, "/projects/"+id+"/open", nil, &out, true)
}

func (c *Client) CloseProject(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/projects/"+id+"/close", nil, nil, true)
}

func (c *Client) CreateProject(ctx context.Context, name string) (*Project, error) {
	var out Project
	return &out, c.doJSON(ctx, http.MethodPost, "/projects", map[string]string{"name": name}, &out, true)
}

// --- Node operations ---

func (c *Client) ListNodes(ctx context.Context, projectID string) ([]Node, error) {
	var out []Node
	return out, c.doJSON(ctx, http.MethodGet, "/projects/"+projectID+"/nodes", nil, &out, false)
}

func (c *Client) CreateNode(ctx context.Context, projectID string, spec map[string]any) (*Node, error) {
	var out Node
	return &out, c.doJSON(ctx, http.MethodPost, "/projects/"+projectID+"/nodes", spec, &out, true)
}

func (c *Client) UpdateNode(ctx context.Context, projectID, nodeID string, patch map[string]any) (*Node, error) {
	var out Node
	return &out, c.doJSON(ctx, http.MethodPut, "/projects/"+projectID+"/nodes/"+nodeID, patch, &out, true)
}

func (c *Client) DeleteNode(ctx context.Context, projectID, nodeID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/projects/"+projectID+"/nodes/"+nodeID, nil, nil, true)
}

func (c *Client) StartNode(ctx context.Context, projectID, nodeID string) error {
	return c.doJSON(ctx, http.MethodPost, "/projects/"+projectID+"/nodes/"+nodeID+"/start", nil, nil, true)
}

func (c *Client) StopNode(ctx context.Context, projectID, nodeID string) error {
	return c.doJSON(ctx, http.MethodPost, "/projects/"+projectID+"/nodes/"+nodeID+"/stop", nil, nil, true)
}

func (c *Client) SuspendNode(ctx context.Context, projectID, nodeID string) error {
	return c.doJSON(ctx, http.MethodPost, "/projects/"+projectID+"/nodes/"+nodeID+"/suspend", nil, nil, true)
}

func (c *Client) ReloadNode(ctx context.Context, projectID, nodeID string) error {
	return c.doJSON(ctx, http.MethodPost, "/projects/"+projectID+"/nodes/"+nodeID+"/reload", nil, nil, true)
}

// --- Link operations ---

func (c *Client) ListLinks(ctx context.Context, projectID string) ([]Link, error) {
	var out []Link
	return out, c.doJSON(ctx, http.MethodGet, "/projects/"+projectID+"/links", nil, &out, false)
}

func (c *Client) CreateLink(ctx context.Context, projectID string, endpoints []LinkEndpoint) (*Link, error) {
	var out Link
	body := map[string]any{"nodes": endpoints}
	return &out, c.doJSON(ctx, http.MethodPost, "/projects/"+projectID+"/links", body, &out, true)
}

func (c *Client) DeleteLink(ctx context.Context, projectID, linkID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/projects/"+projectID+"/links/"+linkID, nil, nil, true)
}

// --- Templates ---

func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var out []Template
	return out, c.doJSON(ctx, http.MethodGet, "/templates", nil, &out, false)
}

// --- Snapshots ---

func (c *Client) ListSnapshots(ctx context.Context, projectID string) ([]Snapshot, error) {
	var out []Snapshot
	return out, c.doJSON(ctx, http.MethodGet, "/projects/"+projectID+"/snapshots", nil, &out, false)
}

func (c *Client) CreateSnapshot(ctx context.Context, projectID, name string) (*Snapshot, error) {
	var out Snapshot
	return &out, c.doJSON(ctx, http.MethodPost, "/projects/"+projectID+"/snapshots", map[string]string{"name": name}, &out, true)
}

func (c *Client) RestoreSnapshot(ctx context.Context, projectID, snapshotID string) error {
	return c.doJSON(ctx, http.MethodPost, "/projects/"+projectID+"/snapshots/"+snapshotID+"/restore", nil, nil, true)
}

// --- Drawings ---

func (c *Client) ListDrawings(ctx context.Context, projectID string) ([]Drawing, error) {
	var out []Drawing
	return out, c.doJSON(ctx, http.MethodGet, "/projects/"+projectID+"/drawings", nil, &out, false)
}

func (c *Client) CreateDrawing(ctx context.Context, projectID string, d Drawing) (*Drawing, error) {
	var out Drawing
	return &out, c.doJSON(ctx, http.MethodPost, "/projects/"+projectID+"/drawings", d, &out, true)
}

func (c *Client) DeleteDrawing(ctx context.Context, projectID, drawingID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/projects/"+projectID+"/drawings/"+drawingID, nil, nil, true)
}

// --- Docker node files ---

func (c *Client) ReadNodeFile(ctx context.Context, projectID, nodeID, path string) ([]byte, error) {
	return c.doRaw(ctx, http.MethodGet, "/projects/"+projectID+"/nodes/"+nodeID+"/files/"+path, nil, false)
}

func (c *Client) WriteNodeFile(ctx context.Context, projectID, nodeID, path string, content []byte) error {
	_, err := c.doRaw(ctx, http.MethodPost, "/projects/"+projectID+"/nodes/"+nodeID+"/files/"+path, content, true)
	return err
}

// --- Misc ---

func (c *Client) Version(ctx context.Context) (*Version, error) {
	var out Version
	return &out, c.doJSON(ctx, http.MethodGet, "/version", nil, &out, false)
}
