package sshproxy

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

// Server is the SSH proxy's HTTP API (spec §6: "/ssh/{configure,
// send_command, send_config_set, status, buffer/{node}, history/{node},
// job/{id}, cleanup}, plus /proxy/registry"), served with stdlib
// net/http + http.ServeMux, matching the teacher's transport.go mux
// style.
type Server struct {
	mgr *Manager
}

// NewServer wraps mgr in an HTTP handler.
func NewServer(mgr *Manager) *Server { return &Server{mgr: mgr} }

// Handler builds the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ssh/configure", s.handleConfigure)
	mux.HandleFunc("/ssh/send_command", s.handleSendCommand)
	mux.HandleFunc("/ssh/send_config_set", s.handleSendConfigSet)
	mux.HandleFunc("/ssh/status/", s.handleStatus)
	mux.HandleFunc("/ssh/buffer/", s.handleBuffer)
	mux.HandleFunc("/ssh/history/", s.handleHistory)
	mux.HandleFunc("/ssh/job/", s.handleJob)
	mux.HandleFunc("/ssh/cleanup", s.handleCleanup)
	mux.HandleFunc("/proxy/registry", s.handleRegistry)
	mux.HandleFunc("/proxy/status", s.handleProxyStatus)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type configureRequest struct {
	NodeName      string     `json:"node_name"`
	Spec          DeviceSpec `json:"device_spec"`
	Persist       bool       `json:"persist"`
	ForceRecreate bool       `json:"force_recreate"`
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.mgr.Configure(req.NodeName, req.Spec, req.ForceRecreate)
	if err != nil {
		writeJSON(w, http.StatusOK, Envelope(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

type sendCommandRequest struct {
	NodeName     string        `json:"node_name"`
	Command      string        `json:"command"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	ExpectString string        `json:"expect_string"`
	WaitTimeout  time.Duration `json:"wait_timeout"`
}

func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	var req sendCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	j, err := s.mgr.SendCommand(req.NodeName, req.Command, req.ReadTimeout, req.WaitTimeout, req.ExpectString)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, j.Snapshot())
}

type configSetRequest struct {
	NodeName string        `json:"node_name"`
	Commands []string      `json:"commands"`
	Timeout  time.Duration `json:"timeout"`
}

func (s *Server) handleSendConfigSet(w http.ResponseWriter, r *http.Request) {
	var req configSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	out, err := s.mgr.SendConfigSet(req.NodeName, req.Commands, req.Timeout)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func pathTail(prefix, path string) string {
	return strings.TrimPrefix(path, prefix)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	node := pathTail("/ssh/status/", r.URL.Path)
	writeJSON(w, http.StatusOK, map[string]any{"node_name": node, "alive": s.mgr.Status(node)})
}

func (s *Server) handleBuffer(w http.ResponseWriter, r *http.Request) {
	node := pathTail("/ssh/buffer/", r.URL.Path)
	mode := parseMode(r.URL.Query().Get("mode"))
	pages, _ := strconv.Atoi(r.URL.Query().Get("pages"))
	out, err := s.mgr.ReadBuffer(node, mode, pages)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func parseMode(m string) ReadMode {
	switch m {
	case "last_page":
		return ModeLastPage
	case "pages":
		return ModePages
	case "all":
		return ModeAll
	default:
		return ModeDiff
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	node := pathTail("/ssh/history/", r.URL.Path)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	search := r.URL.Query().Get("search")
	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		since, _ = time.Parse(time.RFC3339, s)
	}
	jobs, err := s.mgr.GetHistory(node, limit, search, since)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	// /ssh/job/{node_name}/{job_id}
	rest := pathTail("/ssh/job/", r.URL.Path)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		writeErr(w, http.StatusBadRequest, errBadJobPath)
		return
	}
	j, ok := s.mgr.GetJobStatus(parts[0], parts[1])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"completed":      j.Status != JobRunning,
		"status":         j.Status,
		"output":         j.Output,
		"error":          j.Error,
		"execution_time": j.ExecutionTime.String(),
	})
}

var errBadJobPath = jobPathError{}

type jobPathError struct{}

func (jobPathError) Error() string { return "expected /ssh/job/{node_name}/{job_id}" }

type cleanupRequest struct {
	Scope     string   `json:"scope"`
	LiveNodes []string `json:"live_nodes,omitempty"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	var n int
	if req.Scope == "all" {
		n = s.mgr.CleanupAll()
	} else {
		live := make(map[string]struct{}, len(req.LiveNodes))
		for _, name := range req.LiveNodes {
			live[name] = struct{}{}
		}
		n = s.mgr.CleanupOrphaned(live)
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleaned_up": n})
}

// handleRegistry is the read-only peer-discovery resource (spec §6,
// Open Question decision in DESIGN.md: Docker-socket-based peer
// discovery is not implemented; this returns this proxy's own status as
// the only entry).
func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"proxies": []map[string]any{
			{"self": true, "sessions": s.mgr.SessionCount()},
		},
	})
}

func (s *Server) handleProxyStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.mgr.SessionCount()})
}

// RunIdleSweeper runs the idle-session sweeper on a ticker until stop is
// closed (spec §4.3 TTL / §4.8 background tasks).
func (s *Server) RunIdleSweeper(stop <-chan struct{}, period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	l := log.With(map[string]any{"component": "sshproxy"})
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if n := s.mgr.SweepIdle(); n > 0 {
				l.Logf("idle sweep closed %d ssh session(s)", n)
			}
		}
	}
}
