package meta

import (
	"fmt"
	"runtime"
)

// Info describes the build context of a Beacon binary. Most of it is set at
// build time by the Go linker, see the vars below.
type Info struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	Branch    string `json:"branch"`
	BuildTime string `json:"buildTime"`
	Platform  string `json:"platform"`
	GoVersion string `json:"goVersion"`
	GoTag     string `json:"goTag,omitempty"`
}

// These will be filled in using the linker -X flag, e.g.
//
//   go build -ldflags "-X github.com/luma/beacon/internal/meta.Version=v0.1.0"
//
var (
	// Version as an arbitrary string
	Version = "dev"

	// Build is the Git sha from when we are building
	Build string

	// Branch is the Git branch that we are building from
	Branch string

	// BuildTimeUTC is the build time in UTC (year/month/day hour:min:sec)
	BuildTimeUTC string

	// GoTag is the Go build tags, see https://golang.org/pkg/go/build/#hdr-Build_Constraints
	GoTag string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

// GetInfo returns an Info struct populated with the build information.
func GetInfo() Info {
	return Info{
		GoVersion: runtime.Version(),
		Version:   Version,
		Build:     Build,
		Branch:    Branch,
		BuildTime: BuildTimeUTC,
		GoTag:     GoTag,
		Platform:  platform,
	}
}

func (i Info) String() string {
	out := fmt.Sprintf("beacon %s (%s, %s)", i.Version, i.Platform, i.GoVersion)

	if i.Build != "" {
		out += fmt.Sprintf(" build %s", i.Build)
		if i.Branch != "" {
			out += fmt.Sprintf(" on %s", i.Branch)
		}
	}

	if i.BuildTime != "" {
		out += fmt.Sprintf(" at %s", i.BuildTime)
	}

	return out
}
