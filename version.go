package textserver

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is overridden at build time with -ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersion prefers the module version recorded by go install.
func GetVersion() Info {
	version := Version
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			version = v
		}
	}
	return Info{
		Version:   version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("textserver %s (commit %s, %s %s)", i.Version, i.GitCommit, i.GoVersion, i.Platform)
}
