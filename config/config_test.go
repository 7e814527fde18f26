package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cdr.dev/slog/sloggers/slogtest"

	"github.com/mcpbridge/mcpbridge/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	logger := slogtest.Make(t, nil)
	res := config.Load(context.Background(), logger, filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Nil(t, res)
}

func TestLoadFromDefaultLocation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte(`{
		"mcpServers": {"fs": {"command": "npx", "args": ["-y", "@x/mcp-fs"]}}
	}`), 0o600))

	logger := slogtest.Make(t, nil)
	res := config.Load(context.Background(), logger, "", dir)
	require.NotNil(t, res)
	require.Len(t, res.Servers, 1)
	assert.Equal(t, "fs", res.Servers[0].Name)
	assert.Equal(t, "npx", res.Servers[0].Config.Command)
}

func TestParse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("invalid top-level shape", func(t *testing.T) {
		t.Parallel()

		logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
		assert.Nil(t, config.Parse(ctx, logger, []byte(`{"mcpServers": []}`), ""))
		assert.Nil(t, config.Parse(ctx, logger, []byte(`not json`), ""))
		assert.Nil(t, config.Parse(ctx, logger, []byte(`{"disabledMcpServers": {}}`), ""))
	})

	t.Run("one bad entry does not abort the load", func(t *testing.T) {
		t.Parallel()

		logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})
		res := config.Parse(ctx, logger, []byte(`{
			"mcpServers": {
				"good": {"command": "npx"},
				"bad": {"command": 42},
				"also-good": {"url": "https://mcp.example.com"}
			}
		}`), "")
		require.NotNil(t, res)
		require.Len(t, res.Servers, 2)
		assert.Equal(t, "also-good", res.Servers[0].Name)
		assert.Equal(t, "good", res.Servers[1].Name)
	})

	t.Run("disabled list carried through", func(t *testing.T) {
		t.Parallel()

		logger := slogtest.Make(t, nil)
		res := config.Parse(ctx, logger, []byte(`{
			"mcpServers": {"a": {"command": "npx"}},
			"disabledMcpServers": ["a"]
		}`), "")
		require.NotNil(t, res)
		assert.Equal(t, []string{"a"}, res.Disabled)
	})
}

func TestParseProjectResolution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	data := []byte(`{
		"mcpServers": {"global": {"command": "npx"}},
		"disabledMcpServers": ["globally-off"],
		"projects": {
			"C:\\work\\app": {
				"mcpServers": {"proj": {"url": "https://mcp.example.com"}}
			},
			"/home/dev/empty": {
				"disabledMcpServers": ["global"]
			}
		}
	}`)

	tests := []struct {
		name         string
		cwd          string
		wantServers  []string
		wantDisabled []string
	}{
		{
			name:         "no project match keeps global set",
			cwd:          "/somewhere/else",
			wantServers:  []string{"global"},
			wantDisabled: []string{"globally-off"},
		},
		{
			name:         "backslash key matches slash cwd",
			cwd:          "C:/work/app",
			wantServers:  []string{"proj"},
			wantDisabled: []string{"globally-off"},
		},
		{
			name:         "trailing slash ignored",
			cwd:          "C:/work/app/",
			wantServers:  []string{"proj"},
			wantDisabled: []string{"globally-off"},
		},
		{
			name:         "project without servers falls back globally but keeps its disabled list",
			cwd:          "/home/dev/empty",
			wantServers:  []string{"global"},
			wantDisabled: []string{"globally-off", "global"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			logger := slogtest.Make(t, nil)
			res := config.Parse(ctx, logger, data, tc.cwd)
			require.NotNil(t, res)
			names := make([]string, 0, len(res.Servers))
			for _, s := range res.Servers {
				names = append(names, s.Name)
			}
			assert.Equal(t, tc.wantServers, names)
			assert.Equal(t, tc.wantDisabled, res.Disabled)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      config.ServerConfig
		disabled []string
		want     config.Classification
	}{
		{name: "stdio enabled", cfg: config.ServerConfig{Command: "npx"}, want: config.ClassificationEnabled},
		{name: "http enabled", cfg: config.ServerConfig{URL: "https://x"}, want: config.ClassificationEnabled},
		{name: "disabled by name", cfg: config.ServerConfig{Command: "npx"}, disabled: []string{"srv"}, want: config.ClassificationDisabled},
		{name: "both set", cfg: config.ServerConfig{Command: "npx", URL: "https://x"}, want: config.ClassificationInvalid},
		{name: "neither set", cfg: config.ServerConfig{}, want: config.ClassificationInvalid},
		{name: "whitespace command is not set", cfg: config.ServerConfig{Command: "  "}, want: config.ClassificationInvalid},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			class, reason := config.Classify("srv", tc.cfg, tc.disabled)
			assert.Equal(t, tc.want, class)
			if tc.want == config.ClassificationInvalid {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestPartition(t *testing.T) {
	t.Parallel()

	logger := slogtest.Make(t, nil)
	res := &config.Result{
		Servers: []config.Server{
			{Name: "on", Config: config.ServerConfig{Command: "npx"}},
			{Name: "off", Config: config.ServerConfig{Command: "npx"}},
			{Name: "broken", Config: config.ServerConfig{}},
		},
		Disabled: []string{"off"},
	}
	enabled, disabled, invalid := res.Partition(context.Background(), logger)
	require.Len(t, enabled, 1)
	require.Len(t, disabled, 1)
	require.Len(t, invalid, 1)
	assert.Equal(t, "on", enabled[0].Name)
	assert.Equal(t, "off", disabled[0].Name)
	assert.Equal(t, "broken", invalid[0].Name)
}
