package errs

import (
	"fmt"
	"os"

	"github.com/gns3mcp/gns3-mcp-server/pkg/log"
)

// Fatal reports a programming-error-class failure (missing DI registration,
// a violated internal invariant) and terminates the process. Per spec §4.5
// and §7, these are bugs, not runtime conditions, and are never converted
// into an Envelope for a caller to branch on.
func Fatal(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	log.Errorf("FATAL: %s", msg)
	os.Exit(1)
}
