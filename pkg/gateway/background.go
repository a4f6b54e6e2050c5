package gateway

import (
	"context"
	"time"

	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

// runBackgroundTasks drives the gateway's periodic housekeeping (spec
// §4.8): sweeping idle console sessions locally and asking the SSH proxy
// process to sweep its own idle sessions, on the configured interval.
// Grounded on the teacher's periodicMetricExport ticker-loop shape in the
// original run.go, generalized from metric flushing to session sweeping.
func (g *Gateway) runBackgroundTasks(ctx context.Context) {
	ticker := time.NewTicker(g.IdleSweepInterval)
	defer ticker.Stop()

	l := log.With(map[string]any{"component": "gateway-background"})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := g.consoleMgr.SweepIdle(); n > 0 {
				l.Logf("swept %d idle console session(s)", n)
			}
			g.sweepOrphanedSSHSessions(ctx, l)
		}
	}
}

// sweepOrphanedSSHSessions asks the SSH proxy to drop sessions whose
// owning node no longer exists (spec.md:112's definition of "orphaned"),
// not every session indiscriminately. That requires the open project's
// current node list: passing a nil/empty live set would make every
// session look orphaned and defeat the 30-minute idle TTL the SSH proxy's
// own sweeper already enforces for genuinely idle sessions.
func (g *Gateway) sweepOrphanedSSHSessions(ctx context.Context, l *log.Fields) {
	projectID := g.projects.Get()
	if projectID == "" {
		// No project open: we cannot tell orphaned from live, so leave
		// existing sessions alone rather than guess.
		return
	}

	nodes, err := g.gns3Client.ListNodes(ctx, projectID)
	if err != nil {
		l.Warnf("ssh proxy orphan sweep: failed to list nodes: %v", err)
		return
	}
	liveNodes := make([]string, 0, len(nodes))
	for _, n := range nodes {
		liveNodes = append(liveNodes, n.Name)
	}

	if n, err := g.sshProxy.Cleanup(ctx, "orphaned", liveNodes); err != nil {
		l.Warnf("ssh proxy cleanup call failed: %v", err)
	} else if n > 0 {
		l.Logf("swept %d orphaned ssh session(s)", n)
	}
}
