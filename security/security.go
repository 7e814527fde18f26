// Package security implements the advisory command allow-list check and the
// construction of a minimal, safe environment for spawned MCP server
// processes. The allow-list is deliberately non-enforcing: callers log a
// warning on a miss and proceed.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// commandAllowlist holds the basenames of launchers commonly used to start
// MCP servers.
var commandAllowlist = map[string]struct{}{
	"npx":     {},
	"node":    {},
	"uvx":     {},
	"uv":      {},
	"python":  {},
	"python3": {},
	"docker":  {},
	"deno":    {},
	"bun":     {},
	"bunx":    {},
	"pnpm":    {},
	"yarn":    {},
	"go":      {},
	"cargo":   {},
}

// executableExtensions are stripped before the allow-list lookup so that
// "npx.cmd" and "npx" are treated alike.
var executableExtensions = []string{".exe", ".cmd", ".bat", ".sh"}

// envAllowlist names the host variables copied into a child environment.
var envAllowlist = []string{
	"PATH", "HOME", "USER", "SHELL", "TMPDIR", "TEMP", "TMP",
	"LANG", "LC_ALL", "TERM",
	"USERPROFILE", "APPDATA", "LOCALAPPDATA", "SYSTEMROOT", "COMSPEC",
}

// ValidateCommand reports whether the command's basename, optionally minus a
// recognized executable extension, is on the allow-list. Path prefixes in
// either separator style are stripped first since configs travel between
// operating systems. The returned reason is empty on success.
func ValidateCommand(command string) (bool, string) {
	name := basename(strings.TrimSpace(command))
	if name == "" {
		return false, "empty command"
	}
	lower := strings.ToLower(name)
	if _, ok := commandAllowlist[lower]; ok {
		return true, ""
	}
	for _, ext := range executableExtensions {
		if strings.HasSuffix(lower, ext) {
			if _, ok := commandAllowlist[strings.TrimSuffix(lower, ext)]; ok {
				return true, ""
			}
			break
		}
	}
	return false, fmt.Sprintf("%q is not an allow-listed command", name)
}

func basename(command string) string {
	if i := strings.LastIndexAny(command, `/\`); i >= 0 {
		return command[i+1:]
	}
	return command
}

// SafeEnv builds the environment for one spawn in exec.Cmd form: allow-listed
// host variables only, PATH extended with well-known per-user tool install
// directories, then the server's own variables overlaid. Server entries win
// on conflict. The result is never shared between spawns.
func SafeEnv(serverEnv map[string]string) []string {
	env := make(map[string]string, len(envAllowlist)+len(serverEnv))
	for _, key := range envAllowlist {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	env["PATH"] = augmentPath(env["PATH"])
	for k, v := range serverEnv {
		env[k] = v
	}

	keys := maps.Keys(env)
	slices.Sort(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// toolDirs returns the per-user install directories appended to PATH so that
// uv- and cargo-installed servers resolve without shell profile help.
func toolDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, ".cargo", "bin"),
	}
}

func augmentPath(path string) string {
	parts := filepath.SplitList(path)
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		seen[p] = struct{}{}
	}
	for _, dir := range toolDirs() {
		if _, ok := seen[dir]; !ok {
			parts = append(parts, dir)
			seen[dir] = struct{}{}
		}
	}
	return strings.Join(parts, string(os.PathListSeparator))
}
