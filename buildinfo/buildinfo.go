package buildinfo

import (
	"runtime/debug"
)

var version string

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, dep := range info.Deps {
		if dep.Path == "github.com/mcpbridge/mcpbridge" {
			version = dep.Version
		}
	}
}

// Version reports the module version embedded by the Go toolchain, or
// "unknown" when built from a working tree. It is advertised to MCP servers
// as clientInfo.version during the initialize handshake.
func Version() string {
	if version == "" {
		return "unknown"
	}
	return version
}
