package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags "-X github.com/philipparndt/smithforge/version.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info holds build information
type Info struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
}

// Get returns the build information of the running binary
func Get() Info {
	return Info{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
	}
}

// String formats the build information for the version command
func (i Info) String() string {
	return fmt.Sprintf("smithforge %s (commit %s, built %s, %s)", i.Version, i.Commit, i.Date, i.GoVersion)
}
