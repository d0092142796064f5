package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionFile string

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Version returns the release number of ddlkit.
func Version() string {
	return strings.TrimSpace(versionFile)
}

// Platform returns the OS/architecture combination
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// String is the one line printed by the version command.
func String() string {
	return fmt.Sprintf("ddlkit v%s@%s %s %s", Version(), GitCommit, Platform(), BuildDate)
}
