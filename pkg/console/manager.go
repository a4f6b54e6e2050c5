// Package console is the C2 component: concurrent, auto-connecting telnet
// console sessions with background readers, diff/paged buffers, idle
// timeout and race-free connect (spec §4.2).
package console

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

var errClosed = errors.New("console: session closed")

// IdleTimeout is the duration of inactivity after which the sweeper closes
// a session (spec §3: 30 minutes).
const IdleTimeout = 30 * time.Minute

// Status is a read-only snapshot returned by Manager.Status.
type Status struct {
	Connected    bool      `json:"connected"`
	SessionID    string    `json:"session_id,omitempty"`
	Host         string    `json:"host,omitempty"`
	Port         int       `json:"port,omitempty"`
	LastActivity time.Time `json:"last_activity,omitempty"`
}

// connecting is a placeholder installed in the session map while a dial is
// in flight off-lock, so concurrent callers can tell the difference
// between "absent" and "another caller is already connecting" (spec §4.2
// race-free connect).
type pending struct {
	done chan struct{}
	s    *session
	err  error
}

// Manager owns the node-name -> session map. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	inFlight map[string]*pending
}

// NewManager returns an empty console session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*session),
		inFlight: make(map[string]*pending),
	}
}

// connect implements spec §4.2's race-free connect sequence:
//  1. under map lock: if a session exists, return it; if another caller is
//     already dialing, wait on it; else install a pending marker and
//     release the lock.
//  2. dial off-lock.
//  3. re-acquire map lock, install the session (or discard it if another
//     caller raced us) and wake waiters.
func (m *Manager) connect(nodeName, host string, port int) (*session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[nodeName]; ok && !s.isClosed() {
		m.mu.Unlock()
		return s, nil
	}
	if p, ok := m.inFlight[nodeName]; ok {
		m.mu.Unlock()
		<-p.done
		return p.s, p.err
	}

	p := &pending{done: make(chan struct{})}
	m.inFlight[nodeName] = p
	m.mu.Unlock()

	conn, err := dial(host, port)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, nodeName)

	if err != nil {
		p.err = err
		close(p.done)
		return nil, err
	}

	// Double-check: another caller may have installed a session for this
	// node while we were dialing off-lock (e.g. via a differently-raced
	// path). Discard our freshly dialed connection in that case.
	if existing, ok := m.sessions[nodeName]; ok && !existing.isClosed() {
		conn.Close()
		p.s = existing
		close(p.done)
		return existing, nil
	}

	s := newSession(host, port, conn)
	m.sessions[nodeName] = s
	p.s = s
	close(p.done)
	return s, nil
}

// Send ensures a session exists (auto-connect) and writes data to it.
func (m *Manager) Send(nodeName, host string, port int, data []byte) error {
	s, err := m.connect(nodeName, host, port)
	if err != nil {
		return err
	}
	if err := s.send(data); err != nil {
		// Peer closed between auto-connect and send: evict so the next
		// call re-dials rather than reusing a dead session forever.
		m.evict(nodeName, s)
		return err
	}
	return nil
}

// Read returns buffered output per mode, auto-connecting first.
func (m *Manager) Read(nodeName, host string, port int, mode ReadMode, pages int) (string, error) {
	s, err := m.connect(nodeName, host, port)
	if err != nil {
		return "", err
	}
	return s.read(mode, pages), nil
}

// SendAndWait writes data, then blocks until pattern matches the buffer or
// timeout elapses.
func (m *Manager) SendAndWait(nodeName, host string, port int, data []byte, pattern *regexp.Regexp, timeout time.Duration) (string, bool, error) {
	s, err := m.connect(nodeName, host, port)
	if err != nil {
		return "", false, err
	}
	if err := s.send(data); err != nil {
		m.evict(nodeName, s)
		return "", false, err
	}
	out, matched := s.waitFor(pattern, timeout)
	return out, matched, nil
}

// Status returns a snapshot of nodeName's session, or a disconnected
// status if none exists.
func (m *Manager) Status(nodeName string) Status {
	m.mu.Lock()
	s, ok := m.sessions[nodeName]
	m.mu.Unlock()
	if !ok || s.isClosed() {
		return Status{Connected: false}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Connected:    true,
		SessionID:    s.id,
		Host:         s.host,
		Port:         s.port,
		LastActivity: s.lastActivity,
	}
}

// Disconnect explicitly tears down nodeName's session, if any.
func (m *Manager) Disconnect(nodeName string) {
	m.mu.Lock()
	s, ok := m.sessions[nodeName]
	if ok {
		delete(m.sessions, nodeName)
	}
	m.mu.Unlock()
	if ok {
		s.disconnect()
	}
}

func (m *Manager) evict(nodeName string, stale *session) {
	m.mu.Lock()
	if cur, ok := m.sessions[nodeName]; ok && cur == stale {
		delete(m.sessions, nodeName)
	}
	m.mu.Unlock()
}

// SweepIdle closes every session whose last activity exceeds IdleTimeout
// (spec §4.2/§8 testable property 4), run periodically by
// pkg/gateway/background.go. Returns the number of sessions closed.
func (m *Manager) SweepIdle() int {
	type staleEntry struct {
		name string
		s    *session
	}

	m.mu.Lock()
	var stale []staleEntry
	for name, s := range m.sessions {
		if s.idleFor() > IdleTimeout {
			stale = append(stale, staleEntry{name, s})
		}
	}
	for _, e := range stale {
		delete(m.sessions, e.name)
	}
	m.mu.Unlock()

	l := log.With(map[string]any{"component": "console-sweeper"})
	for _, e := range stale {
		e.s.disconnect()
		l.Logf("closed idle console session for node %s", e.name)
	}
	return len(stale)
}

// SessionCount returns the number of live sessions (used for the §4.8
// shutdown accounting log line).
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll tears down every session (process shutdown, spec §4.8).
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.disconnect()
	}
}
