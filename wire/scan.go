package wire

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// maxScanLine bounds the length of a single line considered by the scanners
// below. Longer lines are skipped outright, which guards memory and avoids
// pathological parsing cost on binary or runaway output.
const maxScanLine = 1 << 20

var serverInfoMarker = []byte(`"serverInfo"`)

// HasHandshake reports whether the buffered output contains a syntactically
// locatable JSON-RPC response carrying result.serverInfo, i.e. whether the
// server completed the initialize handshake somewhere in its output.
func HasHandshake(buf []byte) bool {
	return ExtractServerInfo(buf) != nil
}

// ExtractServerInfo scans accumulated process output line by line for a
// JSON-RPC response whose result carries serverInfo. Lines are frequently
// polluted with interleaved log output, so the object is located by balanced
// brace counting rather than whole-line decoding. Any failure yields nil.
func ExtractServerInfo(buf []byte) *ServerInfo {
	for len(buf) > 0 {
		var line []byte
		if nl := bytes.IndexByte(buf, '\n'); nl >= 0 {
			line, buf = buf[:nl], buf[nl+1:]
		} else {
			line, buf = buf, nil
		}
		if len(line) > maxScanLine {
			continue
		}
		if !bytes.Contains(line, serverInfoMarker) {
			continue
		}
		span := balancedSpan(line)
		if span == nil || !gjson.ValidBytes(span) {
			continue
		}
		info := gjson.GetBytes(span, "result.serverInfo")
		if !info.Exists() {
			continue
		}
		return &ServerInfo{
			Name:    info.Get("name").String(),
			Version: info.Get("version").String(),
		}
	}
	return nil
}

// balancedSpan returns the first balanced {...} span in line, tolerating
// leading and trailing non-JSON text on the same line. String literals and
// escape sequences are honored so braces inside values do not skew the depth.
func balancedSpan(line []byte) []byte {
	start := bytes.IndexByte(line, '{')
	if start < 0 {
		return nil
	}
	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return line[start : i+1]
			}
		}
	}
	return nil
}
