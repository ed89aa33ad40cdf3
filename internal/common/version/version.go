package version

import (
	_ "embed"
	"strings"
)

// The VERSION file next to this package is embedded at compile time so the
// binary reports its version without relying on build flags.

//go:embed VERSION
var versionRaw string

// Version is the current tool version, trimmed of whitespace.
var Version = strings.TrimSpace(versionRaw)

// Get returns the current version string.
func Get() string {
	return Version
}
