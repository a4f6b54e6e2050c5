package sshproxy

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/gns3mcp/gns3-mcp-server/pkg/errs"
	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

const (
	// continuousBufferCap mirrors pkg/console's buffer discipline (spec §3)
	// so read_buffer's diff/paged semantics behave identically across both
	// transports.
	continuousBufferCap = 10 * 1024 * 1024
	continuousTrimSize  = 5 * 1024 * 1024

	// TTL is the SSH session idle timeout (spec §4.3 state machine).
	TTL = 30 * time.Minute

	defaultPageLines = 50
)

// ReadMode selects how read_buffer renders the continuous buffer,
// mirroring pkg/console.ReadMode (spec §4.3: "like C2's read, over the
// continuous buffer").
type ReadMode int

const (
	ModeDiff ReadMode = iota
	ModeLastPage
	ModePages
	ModeAll
)

// session is one node's live SSH connection: the underlying client/shell
// plus the continuous buffer that read_buffer reads from. Dual storage
// (spec §4.3): every command also appends a Job to the owning Manager's
// history, independent of this buffer's lifetime.
type session struct {
	nodeName string
	spec     DeviceSpec
	driver   *driver

	client  *ssh.Client
	channel ssh.Channel
	stdin   io.Writer

	mu           sync.Mutex
	buf          bytes.Buffer
	lastReadOffset int
	lastActivity time.Time
	closed       bool
}

// classify maps a raw dial/handshake error into spec §4.3's failure
// categories.
func classify(err error) FailureCategory {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "auth"):
		return FailureAuthentication
	case strings.Contains(msg, "connection refused"):
		return FailureConnectionRefused
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "i/o timeout"):
		return FailureTimeout
	default:
		return FailureHostUnreachable
	}
}

// connectError wraps a classified SSH connection failure for pkg/errs.
type connectError struct {
	cause    error
	category FailureCategory
}

func (e *connectError) Error() string { return e.cause.Error() }
func (e *connectError) Unwrap() error { return e.cause }

// Envelope converts a connectError (or any error) into the C7 envelope
// shape described in spec §4.3: SSH_CONNECTION_FAILED with a
// category-specific suggested_action.
func Envelope(err error) *errs.Envelope {
	var ce *connectError
	if as, ok := err.(*connectError); ok {
		ce = as
	}
	if ce == nil {
		return errs.Wrap(errs.CodeSSHConnectionFailed, err, "SSH connection failed")
	}
	return errs.Wrap(errs.CodeSSHConnectionFailed, err, "SSH connection failed").
		WithContext(map[string]any{"category": ce.category}).
		WithSuggestedAction(suggestedAction(ce.category))
}

func dialSession(nodeName string, spec DeviceSpec) (*session, error) {
	timeout := spec.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	cfg := &ssh.ClientConfig{
		User:            spec.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(spec.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(spec.Host, itoa(spec.Port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, &connectError{cause: err, category: classify(err)}
	}

	ch, in, requests, err := client.Conn.OpenChannel("session", nil)
	if err != nil {
		client.Close()
		return nil, &connectError{cause: err, category: classify(err)}
	}
	go ssh.DiscardRequests(requests)

	if _, err := ch.SendRequest("shell", true, nil); err != nil {
		ch.Close()
		client.Close()
		return nil, &connectError{cause: err, category: classify(err)}
	}

	s := &session{
		nodeName:     nodeName,
		spec:         spec,
		driver:       driverFor(spec.DeviceType),
		client:       client,
		channel:      ch,
		stdin:        ch,
		lastActivity: time.Now(),
	}
	go s.readLoop(in)

	if s.driver.disablePaging != "" {
		_ = s.write(s.driver.disablePaging + "\n")
		time.Sleep(200 * time.Millisecond)
		s.drain()
	}

	return s, nil
}

func (s *session) readLoop(r io.Reader) {
	buf := make([]byte, 4096)
	l := log.With(map[string]any{"component": "sshproxy", "node": s.nodeName})
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.append(buf[:n])
		}
		if err != nil {
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			l.Logf("ssh session closed: %v", err)
			return
		}
	}
}

func (s *session) append(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(b)
	s.lastActivity = time.Now()
	if s.buf.Len() > continuousBufferCap {
		full := s.buf.Bytes()
		trimmed := full[len(full)-continuousTrimSize:]
		dropped := len(full) - len(trimmed)
		s.buf.Reset()
		s.buf.Write(trimmed)
		s.lastReadOffset -= dropped
		if s.lastReadOffset < 0 {
			s.lastReadOffset = 0
		}
	}
}

func (s *session) write(data string) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errSessionClosed
	}
	_, err := io.WriteString(s.stdin, data)
	return err
}

// drain discards any currently-buffered output (used after a paging
// command whose echo we don't want polluting the next real command's
// output).
func (s *session) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReadOffset = s.buf.Len()
}

func (s *session) snapshotSince(offset int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	full := s.buf.String()
	if offset > len(full) {
		offset = len(full)
	}
	return full[offset:]
}

func (s *session) tail() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// read returns the continuous buffer's content per mode, advancing
// lastReadOffset for ModeDiff (identical semantics to pkg/console's
// session.read).
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
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// runCommand writes command, then polls the buffer until the driver's
// prompt pattern matches or timeout elapses. Returns the output between
// the command and the detected prompt.
func (s *session) runCommand(command string, timeout time.Duration) (string, bool) {
	start := s.tail()
	if err := s.write(command + "\n"); err != nil {
		return "", false
	}

	deadline := time.Now().Add(timeout)
	for {
		out := s.snapshotSince(start)
		if loc := s.driver.promptPattern.FindStringIndex(out); loc != nil && len(out) > 0 {
			return stripEcho(command, out[:loc[1]]), true
		}
		if time.Now().After(deadline) {
			return stripEcho(command, out), false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// stripEcho removes the echoed command line from the start of out, if
// present, so job output doesn't repeat the command the caller already
// knows it sent.
func stripEcho(command, out string) string {
	trimmed := strings.TrimPrefix(out, command)
	trimmed = strings.TrimPrefix(trimmed, "\r\n")
	trimmed = strings.TrimPrefix(trimmed, "\n")
	return trimmed
}

// isAlive performs the reuse health check (spec §4.3 configure: "is_alive
// plus an empty-command probe").
func (s *session) isAlive() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	_, ok := s.runCommand("", 2*time.Second)
	return ok
}

func (s *session) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.channel.Close()
	s.client.Close()
}

var errSessionClosed = fmt.Errorf("sshproxy: session closed")

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
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

// matchesExpect reports whether out satisfies an optional expect_string
// regex (spec §4.3 send_command expect_string), in addition to the
// driver's own prompt detection.
func matchesExpect(out, expectString string) bool {
	if expectString == "" {
		return true
	}
	re, err := regexp.Compile(expectString)
	if err != nil {
		return strings.Contains(out, expectString)
	}
	return re.MatchString(out)
}
