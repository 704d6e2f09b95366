package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/geeth24/xpool-agent/pkg/logger"
)

const (
	// frameMarker prefixes every event-bearing line of the stream.
	frameMarker = "data: "

	// doneSentinel is the explicit end-of-stream frame.
	doneSentinel = "[DONE]"

	// maxFrameSize bounds a single frame; tool results can carry whole
	// candidate lists, so this is generous.
	maxFrameSize = 1024 * 1024
)

// Scanner decodes the newline-delimited, marker-prefixed frames of an
// assistant response stream into Events. Partial lines are buffered across
// arbitrarily-sized reads; malformed frames are skipped, never fatal.
type Scanner struct {
	scanner *bufio.Scanner
	done    bool
}

// NewScanner creates a Scanner reading frames from r.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	return &Scanner{scanner: sc}
}

// Next returns the next event in arrival order. It returns io.EOF once the
// end sentinel arrives or the underlying reader is exhausted, and the
// transport error if reading fails mid-stream.
func (s *Scanner) Next() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()

		// SSE keep-alives and blank separator lines carry no frame
		if !strings.HasPrefix(line, frameMarker) {
			continue
		}

		payload := line[len(frameMarker):]
		if payload == doneSentinel {
			s.done = true
			return Event{}, io.EOF
		}

		event, ok := decodeFrame(payload)
		if !ok {
			// A single bad frame must not abort a healthy stream
			logger.Debug("skipping malformed stream frame: %s", payload)
			continue
		}

		return event, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// decodeFrame parses one frame payload into an Event. The second return is
// false for payloads that are not valid frames.
func decodeFrame(payload string) (Event, bool) {
	var frame struct {
		Type    string         `json:"type"`
		Content string         `json:"content"`
		Tools   []string       `json:"tools"`
		Tool    string         `json:"tool"`
		Result  map[string]any `json:"result"`
		Error   string         `json:"error"`
	}

	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		return Event{}, false
	}

	// The backend reports upstream failures as {"error": "..."} with no type
	if frame.Type == "" && frame.Error != "" {
		return Event{Type: EventError, Err: frame.Error}, true
	}

	switch EventType(frame.Type) {
	case EventContent:
		return Event{Type: EventContent, Content: frame.Content}, true
	case EventToolStart:
		return Event{Type: EventToolStart, Tools: frame.Tools}, true
	case EventToolResult:
		return Event{Type: EventToolResult, Tool: frame.Tool, Result: frame.Result}, true
	default:
		return Event{}, false
	}
}
