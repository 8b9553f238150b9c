// SPDX-License-Identifier: MIT
//
// Package build holds the build information embedded with linker flags:
//
//	go build -ldflags "-X kws/pkg/build.buildName=kws \
//	  -X kws/pkg/build.buildTime=$(date -u +%FT%TZ) \
//	  -X kws/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X kws/pkg/build.buildVersion=0.1.0"
//
// Development builds keep the defaults.
package build

import "fmt"

const description = "Continuous keyword spotting on a live or recorded audio stream"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        "kws",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the build flags. It returns an error if any flag is missing, in which
// case the development defaults stay in place.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String renders the version line printed by --version.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
