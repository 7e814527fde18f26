package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
)

const sseEventTypeMessage = "message"

// Event is one Server-Sent Events frame whose data payload decoded as JSON.
type Event struct {
	Type string
	Data json.RawMessage
}

// ParseSSE splits body on blank-line event boundaries and returns the events
// whose accumulated data payload is valid JSON. Multi-line data fields are
// joined with newlines per the SSE specification. A body containing no
// well-formed event yields nil; callers fall back to decoding the whole body
// as plain JSON.
func ParseSSE(body []byte) []Event {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanLine)

	var events []Event
	var eventType string
	var dataLines []string

	flush := func() {
		if len(dataLines) > 0 {
			data := strings.Join(dataLines, "\n")
			if json.Valid([]byte(data)) {
				typ := eventType
				if typ == "" {
					typ = sseEventTypeMessage
				}
				events = append(events, Event{Type: typ, Data: json.RawMessage(data)})
			}
		}
		eventType = ""
		dataLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event.
		if line == "" {
			flush()
			continue
		}

		// Skip comments.
		if strings.HasPrefix(line, ":") {
			continue
		}

		colonIndex := strings.Index(line, ":")
		if colonIndex == -1 {
			continue
		}
		field := line[:colonIndex]
		value := line[colonIndex+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}

		switch field {
		case "event":
			eventType = value
		case "data":
			dataLines = append(dataLines, value)
		}
	}
	// A final event may end at EOF without a trailing blank line.
	flush()

	return events
}
