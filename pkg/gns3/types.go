// Package gns3 is the C1 component: an authenticated, reconnecting HTTP
// client over the GNS3 v3 REST API, with a background token lifecycle and
// exponential-backoff recovery (spec §4.1).
package gns3

import "time"

// ConnState is the lifecycle state of the client's relationship with the
// GNS3 peer, independent of any individual request's outcome.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// Status is a read-only snapshot of the client's connection state, used by
// the gns3_connection tool and the §4.1 "tools return GNS3_UNREACHABLE with
// connection-state context" behavior.
type Status struct {
	State        ConnState `json:"state"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	LastError    string    `json:"last_error,omitempty"`
	NextRetry    time.Time `json:"next_retry,omitempty"`
	RetryBackoff string    `json:"retry_backoff,omitempty"`
}

// Project mirrors the GNS3 project entity (spec §3).
type Project struct {
	ID     string `json:"project_id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Port is one adapter/port slot on a node.
type Port struct {
	AdapterNumber int    `json:"adapter_number"`
	PortNumber    int    `json:"port_number"`
	Name          string `json:"name"`
	LinkID        string `json:"link_id,omitempty"`
}

// Position is a node's canvas coordinates.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Node mirrors the GNS3 node entity (spec §3).
type Node struct {
	ID          string   `json:"node_id"`
	Name        string   `json:"name"`
	Type        string   `json:"node_type"`
	Status      string   `json:"status"`
	ConsolePort int      `json:"console,omitempty"`
	ConsoleType string   `json:"console_type,omitempty"`
	Host        string   `json:"console_host,omitempty"`
	Position    Position `json:"-"`
	X           int      `json:"x"`
	Y           int      `json:"y"`
	Z           int      `json:"z"`
	Locked      bool     `json:"locked"`
	Ports       []Port   `json:"ports"`
}

// LinkEndpoint identifies one side of a link.
type LinkEndpoint struct {
	NodeID        string `json:"node_id"`
	AdapterNumber int    `json:"adapter_number"`
	PortNumber    int    `json:"port_number"`
}

// Link mirrors the GNS3 link entity (spec §3). A link is well-formed iff
// len(Nodes) == 2; ill-formed links are surfaced for cleanup but cannot be
// created by this client.
type Link struct {
	ID    string         `json:"link_id"`
	Nodes []LinkEndpoint `json:"nodes"`
}

// WellFormed reports whether the link has exactly two endpoints.
func (l Link) WellFormed() bool { return len(l.Nodes) == 2 }

// Template is a node template the GNS3 peer can instantiate nodes from.
type Template struct {
	ID   string `json:"template_id"`
	Name string `json:"name"`
}

// Snapshot is a point-in-time save of a project's topology state.
type Snapshot struct {
	ID        string    `json:"snapshot_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Drawing is an annotation/shape overlay on the topology canvas.
type Drawing struct {
	ID       string `json:"drawing_id"`
	SVG      string `json:"svg"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Z        int    `json:"z"`
	Rotation int    `json:"rotation"`
}

// Version is the GNS3 controller's reported version.
type Version struct {
	Version string `json:"version"`
}
