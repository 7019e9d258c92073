// Package version provides version information for the binary.
package version

import "fmt"

// Version is the current version of the application.
// This is set at build time using -ldflags.
var Version = "dev"

// BuildTime is when the binary was built.
// This is set at build time using -ldflags.
var BuildTime = "unknown"

// Info is the JSON shape served by GET /version.
type Info struct {
	Version   string `json:"version"`
	BuildTime string `json:"buildTime"`
}

// Current returns the linked-in build information.
func Current() Info {
	return Info{Version: Version, BuildTime: BuildTime}
}

// String returns the formatted version information.
func String() string {
	return fmt.Sprintf("solidstate version %s (built %s)", Version, BuildTime)
}
