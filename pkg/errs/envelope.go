package errs

import (
	"time"

	"github.com/pkg/errors"
)

// ServerVersion is stamped into every envelope. Set by cmd/gns3-mcp at
// build time in a real release; a fixed development value is fine here.
var ServerVersion = "0.1.0-dev"

// Envelope is the JSON shape returned to MCP callers on failure. error_code
// is stable across versions; error text may improve over time.
type Envelope struct {
	Error           string         `json:"error"`
	ErrorCode       Code           `json:"error_code"`
	Details         string         `json:"details,omitempty"`
	SuggestedAction string         `json:"suggested_action,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	ServerVersion   string         `json:"server_version"`
	Timestamp       time.Time      `json:"timestamp"`

	cause error
}

// New builds an envelope for code with a human-readable message.
func New(code Code, message string) *Envelope {
	return &Envelope{
		Error:         message,
		ErrorCode:     code,
		ServerVersion: ServerVersion,
		Timestamp:     time.Now().UTC(),
	}
}

// Wrap builds an envelope for code from an underlying error, preserving the
// cause for local logging via Cause() without leaking the stack trace into
// the wire representation.
func Wrap(code Code, err error, message string) *Envelope {
	e := New(code, message)
	e.cause = err
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// WithContext attaches free-form context (valid alternatives, operation
// index, host/port, ...) and returns the envelope for chaining.
func (e *Envelope) WithContext(kv map[string]any) *Envelope {
	if e.Context == nil {
		e.Context = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		e.Context[k] = v
	}
	return e
}

// WithSuggestedAction attaches a suggested next step and returns the
// envelope for chaining.
func (e *Envelope) WithSuggestedAction(action string) *Envelope {
	e.SuggestedAction = action
	return e
}

// Cause returns the wrapped underlying error, if any, unwound through
// github.com/pkg/errors so callers can log a stack trace locally.
func (e *Envelope) Cause() error {
	if e.cause == nil {
		return nil
	}
	return errors.Cause(e.cause)
}

// AsText renders the envelope's message for contexts that want plain text
// (log lines, CallToolResult fallback content) rather than JSON.
func (e *Envelope) AsText() string { return e.Error }
