// Package version reports the build of the airtouch binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Version and Commit may be set at build time:
//
//	go build -ldflags="-X github.com/muurk/airtouch/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/airtouch/internal/version.Commit=abc1234"
//
// Otherwise they are filled from the VCS stamp in the build info.
var (
	Version = ""
	Commit  = ""
)

// Info describes one build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var get = sync.OnceValue(func() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(&info, bi)
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
})

// Get returns the build information.
func Get() Info { return get() }

func fromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	if info.Commit != "" {
		return
	}

	var revision, modified string
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" && modified == "true" {
		revision += "-dirty"
	}
	info.Commit = revision
}

func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, %s, %s)", i.Version, i.Commit, i.GoVersion, i.Platform)
}
