// Package version exposes the build metadata of the contact-relay binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Name is the binary name used in version output and the startup log.
const Name = "contact-relay"

var (
	// Version is the semantic version, injected at build time via -ldflags
	Version = "dev"
	// GitCommit is the git commit hash, injected at build time
	GitCommit = "unknown"
	// BuildDate is the build timestamp, injected at build time
	BuildDate = "unknown"
	// GoVersion is the Go compiler version
	GoVersion = runtime.Version()
	// Platform is the OS/Arch
	Platform = runtime.GOOS + "/" + runtime.GOARCH

	readBuildInfo = debug.ReadBuildInfo
)

type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"gitCommit"`
	BuildDate string    `json:"buildDate"`
	GoVersion string    `json:"goVersion"`
	Platform  string    `json:"platform"`
	BuildTime time.Time `json:"buildTime,omitempty"`
}

// GetBuildInfo returns the ldflags values. Without ldflags (go install, go run)
// the commit and date are taken from the VCS stamp of the main module.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
		Platform:  Platform,
	}

	if info.GitCommit == "unknown" || info.BuildDate == "unknown" {
		if bi, ok := readBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					if info.GitCommit == "unknown" && s.Value != "" {
						info.GitCommit = s.Value
					}
				case "vcs.time":
					if info.BuildDate == "unknown" && s.Value != "" {
						info.BuildDate = s.Value
					}
				}
			}
		}
	}

	if t, err := time.Parse(time.RFC3339, info.BuildDate); err == nil {
		info.BuildTime = t
	}

	return info
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, %s %s)", Name, b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}
