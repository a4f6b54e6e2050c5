package sshproxy

import (
	"sync"
	"time"

	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

// nodeSessions bundles a live session with its job history; the pair is
// always created and torn down together, but the two stores never share a
// lock (spec §4.3: buffer trimming and job eviction are independent).
type nodeSessions struct {
	s       *session
	history *jobHistory
}

// Manager is the C3 SSH session/job manager: a node-name -> session map
// mirroring pkg/console.Manager's race-free-connect discipline, plus a
// per-session job store.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*nodeSessions
}

// NewManager returns an empty SSH session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*nodeSessions)}
}

// Configure creates or reuses a session for nodeName (spec §4.3
// configure). Reuse performs a health check; a stale session is dropped
// and rebuilt. forceRecreate skips reuse entirely.
func (m *Manager) Configure(nodeName string, spec DeviceSpec, forceRecreate bool) (string, error) {
	m.mu.Lock()
	existing, ok := m.sessions[nodeName]
	m.mu.Unlock()

	if ok && !forceRecreate {
		if existing.s.isAlive() {
			return existing.s.nodeName, nil
		}
		m.Disconnect(nodeName)
	}

	s, err := dialSession(nodeName, spec)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.sessions[nodeName] = &nodeSessions{s: s, history: newJobHistory()}
	m.mu.Unlock()
	return nodeName, nil
}

func (m *Manager) get(nodeName string) (*nodeSessions, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.sessions[nodeName]
	return ns, ok
}

var errNotConfigured = sessionNotConfiguredError{}

type sessionNotConfiguredError struct{}

func (sessionNotConfiguredError) Error() string { return "sshproxy: node has no configured session" }

// SendCommand executes command against nodeName's session (spec §4.3
// send_command's adaptive sync/async split).
func (m *Manager) SendCommand(nodeName, command string, readTimeout, waitTimeout time.Duration, expectString string) (*Job, error) {
	ns, ok := m.get(nodeName)
	if !ok {
		return nil, errNotConfigured
	}
	j := runJob(ns.s, ns.history, command, readTimeout, waitTimeout, expectString)
	return j, nil
}

// SendConfigSet runs commands as a synchronous configuration session
// (spec §4.3 send_config_set).
func (m *Manager) SendConfigSet(nodeName string, commands []string, timeout time.Duration) (string, error) {
	ns, ok := m.get(nodeName)
	if !ok {
		return "", errNotConfigured
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return runConfigSet(ns.s, commands, timeout)
}

// GetJobStatus returns a snapshot of job id's current state across any
// session (spec §4.3 get_job_status).
func (m *Manager) GetJobStatus(nodeName, jobID string) (Job, bool) {
	ns, ok := m.get(nodeName)
	if !ok {
		return Job{}, false
	}
	j, ok := ns.history.get(jobID)
	if !ok {
		return Job{}, false
	}
	return j.Snapshot(), true
}

// ReadBuffer reads the continuous buffer, mirroring pkg/console's
// diff/paged semantics (spec §4.3 read_buffer).
func (m *Manager) ReadBuffer(nodeName string, mode ReadMode, pages int) (string, error) {
	ns, ok := m.get(nodeName)
	if !ok {
		return "", errNotConfigured
	}
	return ns.s.read(mode, pages), nil
}

// GetHistory lists nodeName's job history with optional filters (spec
// §4.3 get_history).
func (m *Manager) GetHistory(nodeName string, limit int, search string, since time.Time) ([]Job, error) {
	ns, ok := m.get(nodeName)
	if !ok {
		return nil, errNotConfigured
	}
	return ns.history.list(limit, search, since), nil
}

// GetCommandOutput returns one job's output by id (spec §4.3
// get_command_output).
func (m *Manager) GetCommandOutput(nodeName, jobID string) (Job, bool) {
	return m.GetJobStatus(nodeName, jobID)
}

// Status reports whether nodeName has a live session.
func (m *Manager) Status(nodeName string) bool {
	ns, ok := m.get(nodeName)
	if !ok {
		return false
	}
	return ns.s.isAlive()
}

// Disconnect explicitly tears down nodeName's session.
func (m *Manager) Disconnect(nodeName string) {
	m.mu.Lock()
	ns, ok := m.sessions[nodeName]
	if ok {
		delete(m.sessions, nodeName)
	}
	m.mu.Unlock()
	if ok {
		ns.s.close()
	}
}

// CleanupOrphaned drops sessions whose owning node is not in liveNodes
// (spec §4.3 cleanup scope=orphaned).
func (m *Manager) CleanupOrphaned(liveNodes map[string]struct{}) int {
	m.mu.Lock()
	var orphaned []string
	for name := range m.sessions {
		if _, ok := liveNodes[name]; !ok {
			orphaned = append(orphaned, name)
		}
	}
	m.mu.Unlock()

	for _, name := range orphaned {
		m.Disconnect(name)
	}
	return len(orphaned)
}

// CleanupAll drops every session (spec §4.3 cleanup scope=all).
func (m *Manager) CleanupAll() int {
	m.mu.Lock()
	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.Disconnect(name)
	}
	return len(names)
}

// SweepIdle closes sessions idle beyond TTL (spec §4.3 state machine).
func (m *Manager) SweepIdle() int {
	m.mu.Lock()
	var stale []string
	for name, ns := range m.sessions {
		if ns.s.idleFor() > TTL {
			stale = append(stale, name)
		}
	}
	m.mu.Unlock()

	l := log.With(map[string]any{"component": "sshproxy-sweeper"})
	for _, name := range stale {
		m.Disconnect(name)
		l.Logf("closed idle ssh session for node %s", name)
	}
	return len(stale)
}

// SessionCount returns the number of live sessions (§4.8 shutdown
// accounting).
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
