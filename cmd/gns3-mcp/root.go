package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gns3mcp/gns3-mcp-server/pkg/gateway"
	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

func newRootCommand() *cobra.Command {
	var cfg gateway.Config

	cmd := &cobra.Command{
		Use:          "gns3-mcp",
		Short:        "MCP gateway for a GNS3 network-simulation controller",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Verbose {
				log.SetLevel("debug")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return gateway.NewGateway(cfg).Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.GNS3Host, "gns3-host", "localhost", "GNS3 controller host")
	flags.IntVar(&cfg.GNS3Port, "gns3-port", 3080, "GNS3 controller port")
	flags.StringVar(&cfg.GNS3User, "gns3-user", "admin", "GNS3 controller username")
	flags.StringVar(&cfg.GNS3Password, "gns3-password", "", "GNS3 controller password")
	flags.BoolVar(&cfg.GNS3UseTLS, "gns3-tls", false, "use HTTPS to reach the GNS3 controller")
	flags.BoolVar(&cfg.GNS3VerifyTLS, "gns3-verify-tls", true, "verify the GNS3 controller's TLS certificate")
	flags.StringVar(&cfg.SSHProxyURL, "ssh-proxy-url", "http://127.0.0.1:8022", "base URL of the companion gns3-sshproxy process")
	flags.DurationVar(&cfg.MutatingTimeout, "mutating-timeout", 10*time.Second, "per-call timeout for mutating GNS3 API calls")
	flags.DurationVar(&cfg.ListingTimeout, "listing-timeout", 30*time.Second, "per-call timeout for listing GNS3 API calls")
	flags.DurationVar(&cfg.IdleSweepInterval, "idle-sweep-interval", 5*time.Minute, "interval between idle-session sweeps")
	flags.StringVar(&cfg.Transport, "transport", "stdio", "MCP transport: stdio, sse or streaming")
	flags.IntVar(&cfg.Port, "port", 0, "listen port for sse/streaming transports")
	flags.StringVar(&cfg.LogFilePath, "log-file", "", "additionally mirror logs to this file")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (empty disables)")
	flags.BoolVar(&cfg.Verbose, "verbose", false, "enable debug logging")

	return cmd
}
