// Package version holds build-time version information for the farmtable
// binary, populated via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/farmtable-go/internal/version.Version=v0.4.0 \
//	                    -X github.com/54b3r/farmtable-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/farmtable-go/internal/version.BuildDate=2026-10-01" \
//	    ./cmd/farmtable
package version

import "fmt"

var (
	// Version is the semantic version of the binary. Defaults to "dev".
	Version = "dev"
	// Commit is the short git SHA the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build date.
	BuildDate = "unknown"
)

// Info is the JSON shape printed by `farmtable version`.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// Get returns the build information.
func Get() Info {
	return Info{Version: Version, Commit: Commit, BuildDate: BuildDate}
}

// String formats the build information for log lines.
func String() string {
	return fmt.Sprintf("farmtable %s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
