// Package config reads and partitions MCP server configuration. Loading is
// deliberately forgiving: a missing file is not an error, a structurally
// broken file degrades to no configuration, and one malformed server entry
// never takes down the rest of the load. Failures are logged, not returned.
package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"cdr.dev/slog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// DefaultFileName is the conventional configuration file looked up under the
// working directory when no explicit path is given.
const DefaultFileName = ".mcp.json"

// ServerConfig describes one MCP server connection. Exactly one of Command
// or URL must be set; Classify enforces this.
type ServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Type    string            `json:"type,omitempty"`
}

// Server pairs a configured server with its name.
type Server struct {
	Name   string
	Config ServerConfig
}

// Result is the outcome of one configuration load: the servers declared for
// the resolved scope and the merged set of disabled server names.
type Result struct {
	Servers  []Server
	Disabled []string
}

// Classification is the verdict for one configured server.
type Classification string

const (
	ClassificationEnabled  Classification = "enabled"
	ClassificationDisabled Classification = "disabled"
	ClassificationInvalid  Classification = "invalid"
)

type fileSchema struct {
	MCPServers         map[string]json.RawMessage `json:"mcpServers"`
	DisabledMCPServers []string                   `json:"disabledMcpServers"`
	Projects           map[string]projectSchema   `json:"projects"`
}

type projectSchema struct {
	MCPServers         map[string]json.RawMessage `json:"mcpServers"`
	DisabledMCPServers []string                   `json:"disabledMcpServers"`
}

// Load reads the configuration file at path, falling back to DefaultFileName
// under cwd when path is empty. A missing file yields nil without an error;
// see Parse for the remaining semantics.
func Load(ctx context.Context, logger slog.Logger, path, cwd string) *Result {
	if path == "" {
		path = filepath.Join(cwd, DefaultFileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(ctx, "read config file", slog.F("path", path), slog.Error(err))
		}
		return nil
	}
	return Parse(ctx, logger, data, cwd)
}

// Parse decodes raw configuration bytes and resolves the server set for cwd.
// A structurally invalid top level is logged and yields nil. A malformed
// individual server entry is logged and skipped. Project-scoped entries
// matching cwd take precedence over the global set; a matched project with
// no servers of its own falls back to the global servers while still
// honoring its own disabled list, merged with the global one.
func Parse(ctx context.Context, logger slog.Logger, data []byte, cwd string) *Result {
	var file fileSchema
	if err := json.Unmarshal(data, &file); err != nil {
		logger.Warn(ctx, "config has invalid top-level shape, ignoring it", slog.Error(err))
		return nil
	}

	servers := file.MCPServers
	disabled := file.DisabledMCPServers

	if project, ok := matchProject(file.Projects, cwd); ok {
		if len(project.MCPServers) > 0 {
			servers = project.MCPServers
		}
		disabled = mergeDisabled(disabled, project.DisabledMCPServers)
	}

	res := &Result{Disabled: disabled}
	names := maps.Keys(servers)
	slices.Sort(names)
	for _, name := range names {
		var cfg ServerConfig
		if err := json.Unmarshal(servers[name], &cfg); err != nil {
			logger.Warn(ctx, "skipping malformed server entry",
				slog.F("server", name), slog.Error(err))
			continue
		}
		res.Servers = append(res.Servers, Server{Name: name, Config: cfg})
	}
	return res
}

// Classify decides whether one configured server should be checked. A server
// is invalid when neither or both of command/url are set; disabled when its
// name appears in the disabled set; enabled otherwise. The reason is empty
// except for invalid servers.
func Classify(name string, cfg ServerConfig, disabled []string) (Classification, string) {
	hasCommand := strings.TrimSpace(cfg.Command) != ""
	hasURL := strings.TrimSpace(cfg.URL) != ""
	switch {
	case hasCommand && hasURL:
		return ClassificationInvalid, "both command and url are set"
	case !hasCommand && !hasURL:
		return ClassificationInvalid, "neither command nor url is set"
	}
	if slices.Contains(disabled, name) {
		return ClassificationDisabled, ""
	}
	return ClassificationEnabled, ""
}

// Partition splits the result's servers by classification, logging the
// reason for each invalid entry.
func (r *Result) Partition(ctx context.Context, logger slog.Logger) (enabled, disabled, invalid []Server) {
	if r == nil {
		return nil, nil, nil
	}
	for _, srv := range r.Servers {
		class, reason := Classify(srv.Name, srv.Config, r.Disabled)
		switch class {
		case ClassificationEnabled:
			enabled = append(enabled, srv)
		case ClassificationDisabled:
			disabled = append(disabled, srv)
		default:
			logger.Warn(ctx, "invalid server config",
				slog.F("server", srv.Name), slog.F("reason", reason))
			invalid = append(invalid, srv)
		}
	}
	return enabled, disabled, invalid
}

// matchProject resolves cwd against the project keys, tolerating the
// separator and leading-slash differences that appear when a config written
// on one OS is read on another.
func matchProject(projects map[string]projectSchema, cwd string) (projectSchema, bool) {
	if len(projects) == 0 || cwd == "" {
		return projectSchema{}, false
	}
	norm := normalizePath(cwd)
	candidates := map[string]struct{}{
		norm:                                {},
		"/" + strings.TrimPrefix(norm, "/"): {},
		strings.TrimPrefix(norm, "/"):       {},
	}
	keys := maps.Keys(projects)
	slices.Sort(keys)
	for _, key := range keys {
		if _, ok := candidates[normalizePath(key)]; ok {
			return projects[key], true
		}
	}
	return projectSchema{}, false
}

// normalizePath converts backslashes to slashes and trims a trailing slash,
// keeping a bare root intact.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func mergeDisabled(global, project []string) []string {
	if len(project) == 0 {
		return global
	}
	merged := append([]string(nil), global...)
	for _, name := range project {
		if !slices.Contains(merged, name) {
			merged = append(merged, name)
		}
	}
	return merged
}
