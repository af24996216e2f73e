// Package version carries build metadata for the swarmintel binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden at link time, e.g.
//
//	-ldflags "-X github.com/UltravioletaDAO/karmakadabra-sub003/internal/version.Version=0.4.0"
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Name is the binary name.
const Name = "swarmintel"

// BuildInfo describes the running binary. It is served by the gateway's
// status endpoint.
type BuildInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"go"`
	Platform  string `json:"platform"`
}

// Get collects the build metadata. Values not injected by the linker are
// taken from the VCS stamp the toolchain embeds.
func Get() BuildInfo {
	b := BuildInfo{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillVCS(&b, bi.Settings)
	}
	b.Commit = abbrev(b.Commit)
	return b
}

func fillVCS(b *BuildInfo, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "" {
				b.Date = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
}

// String renders the one-line form printed by `swarmintel version`.
func (b BuildInfo) String() string {
	commit := b.Commit
	if commit == "" {
		commit = "none"
	} else if b.Modified {
		commit += "+dirty"
	}
	date := b.Date
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s %s (%s, built %s, %s %s)", b.Name, b.Version, commit, date, b.GoVersion, b.Platform)
}

func abbrev(rev string) string {
	const n = 12
	if len(rev) > n {
		return rev[:n]
	}
	return rev
}
