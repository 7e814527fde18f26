package mcpbridge

import (
	"time"

	"github.com/joeshaw/envdecode"
)

// Settings carries the timeout discipline and debug toggle for all checks.
// It is constructed once and passed into the Bridge rather than read from
// ambient globals, so tests can shrink timeouts freely.
type Settings struct {
	// StdioVerifyTimeout bounds one stdio verification from spawn to
	// handshake.
	StdioVerifyTimeout time.Duration `env:"MCPBRIDGE_STDIO_VERIFY_TIMEOUT,default=10s"`
	// HTTPVerifyTimeout bounds the single initialize POST of an HTTP
	// verification.
	HTTPVerifyTimeout time.Duration `env:"MCPBRIDGE_HTTP_VERIFY_TIMEOUT,default=10s"`
	// ToolsTimeout bounds one stdio tools fetch end to end. The HTTP tools
	// path uses its own per-attempt deadlines instead; see the retry table
	// in fetchToolsHTTP.
	ToolsTimeout time.Duration `env:"MCPBRIDGE_TOOLS_TIMEOUT,default=30s"`
	// Debug enables wire-level logging of requests and responses.
	Debug bool `env:"MCPBRIDGE_DEBUG,default=false"`
}

// DefaultSettings returns the documented default timeouts.
func DefaultSettings() Settings {
	return Settings{
		StdioVerifyTimeout: 10 * time.Second,
		HTTPVerifyTimeout:  10 * time.Second,
		ToolsTimeout:       30 * time.Second,
	}
}

// SettingsFromEnv reads Settings from the MCPBRIDGE_* environment variables,
// falling back to DefaultSettings when decoding fails.
func SettingsFromEnv() Settings {
	var s Settings
	if err := envdecode.Decode(&s); err != nil {
		return DefaultSettings()
	}
	return s
}
