// Command noticeflow is the operator CLI: one-shot ingestion and dispatch
// passes, the deadline tools, schema migrations and the long-running modes.
package main

import (
	"os"

	"github.com/turtacn/NoticeFlow/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
