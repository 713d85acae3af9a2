// pkg/version/version.go
// Package version provides version metadata for the application.
package version

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// These variables are typically injected at build time using -ldflags
var (
	// Version holds the current version of xploit.
	Version = "dev"
	// Commit holds the current version commit of xploit.
	Commit = "none"
	// BuildDate holds the build date of xploit.
	BuildDate = "unknown"
	// StartDate holds the start date of xploit.
	StartDate = time.Now()
)

// Struct returns version information in a structured format.
type Struct struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("xploit %s (commit: %s, date: %s)", Version, Commit, BuildDate)
}

// Get returns version information as a Struct.
func Get() Struct {
	return Struct{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}
}

// IsRelease reports whether Version is a semantic version without
// prerelease suffix.
func IsRelease() bool {
	v, err := semver.NewVersion(Version)
	return err == nil && v.Prerelease() == ""
}

// Newer reports whether candidate is a greater semantic version than the
// running one. Development builds never have newer releases.
func Newer(candidate string) (bool, error) {
	current, err := semver.NewVersion(Version)
	if err != nil {
		return false, nil
	}
	c, err := semver.NewVersion(candidate)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", candidate, err)
	}
	if current.Prerelease() == "" && c.Prerelease() != "" {
		return false, nil
	}
	return c.GreaterThan(current), nil
}
