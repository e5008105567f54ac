// Package buildinfo holds build-time metadata injected at link time,
// separate from user configuration.
package buildinfo

// Set via -ldflags at build time.
var (
	// Version is the Git version tag of the build.
	Version = "dev"

	// BuildDate is the time the binary was built.
	BuildDate = "unknown"
)
