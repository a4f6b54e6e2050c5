// Command gns3-mcp is the MCP-facing gateway process (spec §4.8): it
// constructs the GNS3 client in the disconnected state, wires C1-C4 into
// the dependency container, registers the static tool/resource/prompt
// catalog and serves one of the stdio/sse/streamable-http transports
// until interrupted.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
