// Package version provides build and version information for SignalGrid.
package version

import "runtime/debug"

// Version is the current release version of SignalGrid.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/SignalGrid/internal/version.Version=x.y.z"
var Version = "0.3.0"

// Revision returns the VCS revision embedded by the Go toolchain, or
// "unknown" when the binary was built without VCS information.
func Revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return "unknown"
}
