package gateway

import "time"

// Config holds everything needed to start the gateway process (spec §6
// Configuration surface): where the GNS3 peer and its SSH-proxy companion
// live, how the MCP server is exposed, and the background task cadences.
type Config struct {
	Options

	GNS3Host     string
	GNS3Port     int
	GNS3User     string
	GNS3Password string
	GNS3UseTLS   bool
	GNS3VerifyTLS bool

	SSHProxyURL string

	MutatingTimeout time.Duration
	ListingTimeout  time.Duration

	IdleSweepInterval time.Duration
}

// Options are the process-level knobs independent of any one peer
// connection (spec §6, and the teacher's Options split of "how the server
// is exposed" from "what it talks to").
type Options struct {
	Port        int
	Transport   string
	Verbose     bool
	LogFilePath string
	MetricsAddr string
}

func (c Config) withDefaults() Config {
	if c.MutatingTimeout == 0 {
		c.MutatingTimeout = 10 * time.Second
	}
	if c.ListingTimeout == 0 {
		c.ListingTimeout = 30 * time.Second
	}
	if c.IdleSweepInterval == 0 {
		c.IdleSweepInterval = 5 * time.Minute
	}
	if c.SSHProxyURL == "" {
		c.SSHProxyURL = "http://127.0.0.1:8022"
	}
	return c
}
