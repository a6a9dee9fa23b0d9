package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time with -ldflags "-X github.com/MrSnakeDoc/bkmeta/internal/version.Version=...".
var (
	Version   = "dev"             // ex: v0.1.0
	Commit    = "none"            // ex: abcd123
	BuildDate = "unknown"         // ex: 2025-08-11T18:42:00Z
	GoVersion = runtime.Version() // go version
)

// String renders the full build identity on one line.
func String() string {
	return fmt.Sprintf("bkmeta %s (commit=%s, built=%s, go=%s)", Version, Commit, BuildDate, GoVersion)
}
