package wire_test

import (
	"encoding/json"
	"testing"

	"github.com/mcpbridge/mcpbridge/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSSE(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		expected []string // expected data payloads, in order
	}{
		{
			name:     "single event",
			body:     "event: message\ndata: {\"id\":1}\n\n",
			expected: []string{`{"id":1}`},
		},
		{
			name:     "no event field defaults to message",
			body:     "data: {\"id\":1}\n\n",
			expected: []string{`{"id":1}`},
		},
		{
			name:     "multiple events",
			body:     "data: {\"id\":1}\n\ndata: {\"id\":2}\n\n",
			expected: []string{`{"id":1}`, `{"id":2}`},
		},
		{
			name:     "missing trailing blank line",
			body:     "data: {\"id\":1}",
			expected: []string{`{"id":1}`},
		},
		{
			name:     "comments and unknown fields skipped",
			body:     ": keepalive\nid: 7\nretry: 100\ndata: {\"id\":1}\n\n",
			expected: []string{`{"id":1}`},
		},
		{
			name:     "non-JSON data dropped",
			body:     "data: not json\n\ndata: {\"id\":2}\n\n",
			expected: []string{`{"id":2}`},
		},
		{
			name:     "plain JSON body is not SSE",
			body:     `{"jsonrpc":"2.0","id":1,"result":{}}`,
			expected: nil,
		},
		{
			name:     "empty body",
			body:     "",
			expected: nil,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			events := wire.ParseSSE([]byte(tc.body))
			require.Len(t, events, len(tc.expected))
			for i, want := range tc.expected {
				assert.JSONEq(t, want, string(events[i].Data))
				assert.Equal(t, "message", events[i].Type)
			}
		})
	}
}

// A multi-line data payload must survive framing and parsing unchanged.
func TestParseSSERoundTrip(t *testing.T) {
	t.Parallel()

	original := map[string]any{
		"jsonrpc": "2.0",
		"id":      float64(1),
		"result": map[string]any{
			"serverInfo": map[string]any{"name": "fs", "version": "1.0"},
		},
	}
	pretty, err := json.MarshalIndent(original, "", "  ")
	require.NoError(t, err)

	var framed []byte
	framed = append(framed, "event: message\n"...)
	for _, line := range splitLines(pretty) {
		framed = append(framed, "data: "...)
		framed = append(framed, line...)
		framed = append(framed, '\n')
	}
	framed = append(framed, '\n')

	events := wire.ParseSSE(framed)
	require.Len(t, events, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(events[0].Data, &decoded))
	assert.Equal(t, original, decoded)
}

func splitLines(b []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, b[start:i])
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, b[start:])
	}
	return lines
}
