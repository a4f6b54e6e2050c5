package gateway

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"net/http"
	"os"
)

const (
	tokenLength  = 50
	tokenCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// generateAuthToken generates a random 50-character token for the SSE and
// streaming transports' inbound bearer auth (spec §6: these transports
// listen on a local TCP port and need their own access control, separate
// from the GNS3 peer's own credentials in Config).
func generateAuthToken() (string, error) {
	token := make([]byte, tokenLength)
	charsetLen := big.NewInt(int64(len(tokenCharset)))
	for i := range tokenLength {
		num, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random token: %w", err)
		}
		token[i] = tokenCharset[num.Int64()]
	}
	return string(token), nil
}

// getOrGenerateAuthToken retrieves the auth token from MCP_GATEWAY_AUTH_TOKEN
// or generates a new one if unset.
func getOrGenerateAuthToken() (token string, wasGenerated bool, err error) {
	if envToken := os.Getenv("MCP_GATEWAY_AUTH_TOKEN"); envToken != "" {
		return envToken, false, nil
	}
	token, err = generateAuthToken()
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// authenticationMiddleware validates requests using a Bearer token in the
// Authorization header. /health and /metrics are excluded so local
// monitoring doesn't need the token.
func authenticationMiddleware(authToken string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		authenticated := false
		const bearerPrefix = "Bearer "
		if authHeader := r.Header.Get("Authorization"); len(authHeader) > len(bearerPrefix) && authHeader[:len(bearerPrefix)] == bearerPrefix {
			bearerToken := authHeader[len(bearerPrefix):]
			if subtle.ConstantTimeCompare([]byte(bearerToken), []byte(authToken)) == 1 {
				authenticated = true
			}
		}

		if !authenticated {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gns3-mcp-server"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// formatBearerToken formats the Bearer token for display in logs.
func formatBearerToken(authToken string) string {
	return fmt.Sprintf("Authorization: Bearer %s", authToken)
}
