package gateway

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/console"
	"github.com/gns3mcp/gns3-mcp-server/pkg/container"
	"github.com/gns3mcp/gns3-mcp-server/pkg/dispatcher"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3"
	"github.com/gns3mcp/gns3-mcp-server/pkg/gns3proxyclient"
	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
	"github.com/gns3mcp/gns3-mcp-server/pkg/prompts"
)

// Gateway owns the MCP server process for the lifetime of one run (spec
// §4.5/§4.8): it wires C1-C4 into the dependency container, registers the
// static tool/resource/prompt catalog, starts the background tasks, and
// serves one of the three transports until its context is cancelled.
type Gateway struct {
	Config

	container *container.Container
	mcpServer *mcp.Server
	health    *healthState

	gns3Client   *gns3.Client
	consoleMgr   *console.Manager
	sshProxy     *gns3proxyclient.Client
	projects     *dispatcher.ProjectTracker

	authToken string
}

// NewGateway builds a Gateway in the disconnected state; no network
// activity happens until Run is called (spec §4.1 startup policy).
func NewGateway(cfg Config) *Gateway {
	cfg = cfg.withDefaults()

	g := &Gateway{
		Config:    cfg,
		container: container.New(),
		health:    newHealthState(),
	}

	g.gns3Client = gns3.New(gns3.Config{
		Host:            cfg.GNS3Host,
		Port:            cfg.GNS3Port,
		User:            cfg.GNS3User,
		Password:        cfg.GNS3Password,
		UseTLS:          cfg.GNS3UseTLS,
		VerifyTLS:       cfg.GNS3VerifyTLS,
		MutatingTimeout: cfg.MutatingTimeout,
		ListingTimeout:  cfg.ListingTimeout,
	})
	g.consoleMgr = console.NewManager()
	g.sshProxy = gns3proxyclient.New(cfg.SSHProxyURL)

	container.RegisterInstance(g.container, g.gns3Client)
	container.RegisterInstance(g.container, g.consoleMgr)
	container.RegisterInstance(g.container, g.sshProxy)

	return g
}

// Run starts the background tasks and serves the configured transport until
// ctx is cancelled (spec §4.8: graceful shutdown tears down every live
// console/SSH session and reports counts).
func (g *Gateway) Run(ctx context.Context) error {
	if g.LogFilePath != "" {
		logFile, err := os.OpenFile(g.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", g.LogFilePath, err)
		}
		defer logFile.Close()
		log.SetLogWriter(io.MultiWriter(os.Stderr, logFile))
	}

	start := time.Now()

	var ln net.Listener
	if port := g.Port; port != 0 {
		var lc net.ListenConfig
		var err error
		ln, err = lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return err
		}
	}

	g.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    "gns3-mcp-server",
		Version: "0.1.0-dev",
	}, &mcp.ServerOptions{
		InitializedHandler: func(_ context.Context, req *mcp.InitializedRequest) {
			ci := req.Session.InitializeParams().ClientInfo
			log.Logf("- client initialized %s@%s", ci.Name, ci.Version)
		},
		HasPrompts:   true,
		HasResources: true,
		HasTools:     true,
	})

	g.projects = dispatcher.Register(g.mcpServer, g.container)
	prompts.Register(g.mcpServer)

	bg, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	g.gns3Client.StartAuthLoop(bg)
	go g.runBackgroundTasks(bg)

	defer func() {
		closedConsole := g.consoleMgr.SessionCount()
		g.consoleMgr.CloseAll()
		n, err := g.sshProxy.Cleanup(context.Background(), "all", nil)
		if err != nil {
			n = 0
		}
		log.Logf("> shutdown: closed %d console session(s), %d ssh session(s)", closedConsole, n)
	}()

	log.Log("> initialized in", time.Since(start))

	transport := strings.ToLower(g.Transport)
	if transport == "" {
		transport = "stdio"
	}

	if (transport == "sse" || transport == "http" || transport == "streamable" || transport == "streaming" || transport == "streamable-http") && g.authToken == "" {
		token, wasGenerated, err := getOrGenerateAuthToken()
		if err != nil {
			return fmt.Errorf("failed to initialize auth token: %w", err)
		}
		g.authToken = token
		if wasGenerated {
			log.Logf("> use Bearer token: %s", formatBearerToken(g.authToken))
		} else {
			log.Log("> using Bearer token from MCP_GATEWAY_AUTH_TOKEN environment variable")
		}
	}

	switch transport {
	case "stdio":
		if g.MetricsAddr != "" {
			go g.startMetricsServer(ctx)
		}
		log.Log("> starting stdio server")
		return g.startStdioServer(ctx)

	case "sse":
		log.Log("> starting sse server on port", g.Port)
		return g.startSseServer(ctx, ln)

	case "http", "streamable", "streaming", "streamable-http":
		log.Log("> starting streaming server on port", g.Port)
		return g.startStreamingServer(ctx, ln)

	default:
		return fmt.Errorf("unknown transport %q, expected 'stdio', 'sse' or 'streaming'", g.Transport)
	}
}
