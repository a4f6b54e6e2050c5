package console

import (
	"bytes"
	"net"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

const (
	// defaultBufferCap is the buffer's hard cap before a trim (spec §3).
	defaultBufferCap = 10 * 1024 * 1024
	// defaultTrimSize is the size the buffer is trimmed down to on overflow.
	defaultTrimSize = 5 * 1024 * 1024
	// defaultPageLines is "P" in spec §4.2's last_page/pages(n) modes.
	defaultPageLines = 50
)

// ReadMode selects how Read renders the session's buffer (spec §4.2).
type ReadMode int

const (
	ModeDiff ReadMode = iota
	ModeLastPage
	ModePages
	ModeAll
)

// session is one node's telnet console connection: a background reader
// goroutine appends raw device output to buf under mu; callers reading the
// buffer take the same lock to snapshot a slice and advance the offset.
// Grounded on other_examples mmcdole-rune's TCPClient/connection split: a
// stable session object wraps an ephemeral net.Conn, with reader/writer
// work running in their own goroutines guarded by done-channel shutdown.
type session struct {
	id   string
	host string
	port int

	mu             sync.Mutex
	conn           net.Conn
	buf            bytes.Buffer
	lastReadOffset int
	lastActivity   time.Time
	closed         bool

	readerDone chan struct{}
}

func dial(host string, port int) (net.Conn, error) {
	return net.DialTimeout("tcp", net.JoinHostPort(host, itoa(port)), 10*time.Second)
}

func newSession(host string, port int, conn net.Conn) *session {
	s := &session{
		id:           uuid.NewString(),
		host:         host,
		port:         port,
		conn:         conn,
		lastActivity: time.Now(),
		readerDone:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// readLoop is the background reader (spec §4.2): loop reading raw bytes,
// strip ANSI/normalize, append to buf under the session lock, trim on
// overflow.
func (s *session) readLoop() {
	defer close(s.readerDone)
	raw := make([]byte, 4096)
	l := log.With(map[string]any{"component": "console", "host": s.host, "port": s.port})
	for {
		n, err := s.conn.Read(raw)
		if n > 0 {
			s.append(clean(raw[:n]))
		}
		if err != nil {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			l.Logf("console session %s closed: %v", s.id, err)
			return
		}
	}
}

func (s *session) append(b []byte) {
	if len(b) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(b)
	s.lastActivity = time.Now()

	if s.buf.Len() > defaultBufferCap {
		full := s.buf.Bytes()
		trimmed := full[len(full)-defaultTrimSize:]
		dropped := len(full) - len(trimmed)

		s.buf.Reset()
		s.buf.Write(trimmed)

		// Open Question (spec §9): advance the offset to the new head
		// rather than raising a diagnostic event (decision recorded in
		// DESIGN.md). Only monotonicity is guaranteed across a trim, not
		// exact byte boundaries.
		s.lastReadOffset -= dropped
		if s.lastReadOffset < 0 {
			s.lastReadOffset = 0
		}
	}
}

// send writes data to the peer and refreshes last_activity.
func (s *session) send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errClosed
	}
	_, err := conn.Write(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
	return nil
}

// read returns buffer content per mode. For ModeDiff, it advances
// lastReadOffset.
func (s *session) read(mode ReadMode, pages int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	full := s.buf.String()
	switch mode {
	case ModeDiff:
		if s.lastReadOffset > len(full) {
			s.lastReadOffset = len(full)
		}
		out := full[s.lastReadOffset:]
		s.lastReadOffset = len(full)
		return out
	case ModeAll:
		return full
	case ModeLastPage:
		return lastNLines(full, defaultPageLines)
	case ModePages:
		n := pages
		if n <= 0 {
			n = 1
		}
		return lastNLines(full, n*defaultPageLines)
	default:
		return ""
	}
}

func lastNLines(s string, n int) string {
	lines := splitLines(s)
	if len(lines) <= n {
		return s
	}
	return joinLines(lines[len(lines)-n:])
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func joinLines(lines []string) string {
	var b bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l)
	}
	return b.String()
}

func (s *session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) disconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()
	conn.Close()
	<-s.readerDone
}

// waitFor consumes buffer growth until pattern matches or timeout elapses,
// implementing send_and_wait's polling loop (spec §4.2/§9: "a timed loop
// over buffer snapshots under the session lock rather than callbacks").
func (s *session) waitFor(pattern *regexp.Regexp, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	start := s.offset()
	for {
		s.mu.Lock()
		full := s.buf.String()
		s.mu.Unlock()

		region := full[min(start, len(full)):]
		if loc := pattern.FindStringIndex(region); loc != nil {
			s.mu.Lock()
			s.lastReadOffset = start + loc[1]
			s.mu.Unlock()
			return region[:loc[1]], true
		}
		if time.Now().After(deadline) {
			return "", false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (s *session) offset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReadOffset
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
