package gateway

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gns3mcp/gns3-mcp-server/pkg/contextkeys"
	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

// healthState is a minimal liveness flag for the /health endpoint: the
// process is healthy once it has finished registering its catalog and
// started serving, and unhealthy only before that or while shutting down.
// Grounded on the teacher's health.State but trimmed to the single bool
// this server actually needs — there is no per-server health fan-in here.
type healthState struct {
	healthy atomic.Bool
}

func newHealthState() *healthState {
	h := &healthState{}
	h.healthy.Store(true)
	return h
}

func (h *healthState) IsHealthy() bool { return h.healthy.Load() }

func (g *Gateway) startStdioServer(ctx context.Context) error {
	transport := &mcp.StdioTransport{}
	return g.mcpServer.Run(ctx, transport)
}

func (g *Gateway) startSseServer(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler(g.health))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", redirectHandler("/sse"))
	sseHandler := mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
		return g.mcpServer
	}, nil)
	mux.Handle("/sse", peerAddrHandler(originSecurityHandler(sseHandler)))

	var handler http.Handler = mux
	if g.authToken != "" {
		handler = authenticationMiddleware(g.authToken, mux)
	}

	httpServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	return httpServer.Serve(ln)
}

func (g *Gateway) startStreamingServer(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler(g.health))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", redirectHandler("/mcp"))
	streamHandler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return g.mcpServer
	}, nil)
	mux.Handle("/mcp", peerAddrHandler(originSecurityHandler(streamHandler)))

	var handler http.Handler = mux
	if g.authToken != "" {
		handler = authenticationMiddleware(g.authToken, mux)
	}

	httpServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	return httpServer.Serve(ln)
}

// startMetricsServer serves /health and /metrics on a standalone listener
// for stdio-transport deployments, where the MCP traffic itself never
// touches an HTTP mux (spec §6 configuration surface: metrics are an
// ambient concern, not a tool).
func (g *Gateway) startMetricsServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler(g.health))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: g.MetricsAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warnf("metrics server stopped: %v", err)
	}
}

func redirectHandler(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	}
}

func healthHandler(state *healthState) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if state.IsHealthy() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}
}

// isAllowedOrigin validates that the origin is from localhost: the gateway
// only ever expects local MCP clients to speak SSE/streaming HTTP to it.
func isAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}

// originSecurityHandler validates the Origin header to prevent DNS
// rebinding attacks against the local HTTP transports.
func originSecurityHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !isAllowedOrigin(origin) {
			http.Error(w, "Forbidden: Invalid Origin header", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// peerAddrHandler attaches the connecting client's remote address to the
// request context under contextkeys.PeerAddrKey. The MCP SDK carries the
// originating HTTP request's context through to tool call handlers, so
// pkg/dispatcher can read it back out to attribute project open/close
// actions to the peer that issued them.
func peerAddrHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), contextkeys.PeerAddrKey, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
