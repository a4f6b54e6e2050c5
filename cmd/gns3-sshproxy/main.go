// Command gns3-sshproxy is the companion SSH session/job manager process
// (spec §4.3, §6): it holds long-lived SSH sessions to simulated devices
// in memory and exposes them over a small HTTP API that the gateway
// process (cmd/gns3-mcp) calls through pkg/gns3proxyclient.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
	"github.com/gns3mcp/gns3-mcp-server/pkg/sshproxy"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		addr        string
		sweepPeriod time.Duration
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:          "gns3-sshproxy",
		Short:        "SSH session/job manager for simulated network devices",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if verbose {
				log.SetLevel("debug")
			}

			mgr := sshproxy.NewManager()
			srv := sshproxy.NewServer(mgr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stopSweep := make(chan struct{})
			go srv.RunIdleSweeper(stopSweep, sweepPeriod)
			defer close(stopSweep)

			httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()

			log.Logf("> ssh proxy listening on %s", addr)
			defer func() {
				n := mgr.CleanupAll()
				log.Logf("> shutdown: closed %d ssh session(s)", n)
			}()

			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", ":8022", "address to serve the SSH proxy HTTP API on")
	flags.DurationVar(&sweepPeriod, "idle-sweep-interval", 5*time.Minute, "interval between idle-session sweeps")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")

	return cmd
}
