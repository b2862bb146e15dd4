// Command styxctl mints and inspects admission tokens and dry-runs
// integration configs against a synthetic request.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("execution failed", "err", err)
		os.Exit(1)
	}
}
