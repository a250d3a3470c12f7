// Package version carries build metadata injected through ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/wodesk/internal/version.Version=v0.3.0" ./cmd/wodesk
package version

import "fmt"

// Version is the release version of the binary.
var Version = "dev"

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by `wodesk --version`.
func String() string {
	return fmt.Sprintf("wodesk %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
