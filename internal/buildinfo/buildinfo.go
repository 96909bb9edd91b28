// Package buildinfo reports the daemon version, overridable at link time with
// -ldflags "-X main.version=...".
package buildinfo

import (
	"runtime"
	"runtime/debug"
)

var version = "dev"

// SetVersion overrides the reported version. Empty is ignored.
func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

// Version returns the set version, else the module version, else "dev".
func Version() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Platform is the host OS and architecture, e.g. "linux/amd64".
func Platform() string { return runtime.GOOS + "/" + runtime.GOARCH }
