package stream

// EventType discriminates the frames emitted by the assistant stream.
type EventType string

const (
	EventContent    EventType = "content"
	EventToolStart  EventType = "tool_start"
	EventToolResult EventType = "tool_result"
	EventError      EventType = "error"
)

// Event is one decoded frame from the assistant response stream.
type Event struct {
	Type EventType

	// Content carries the text fragment for EventContent frames.
	Content string

	// Tools carries the ordered tool names announced by an EventToolStart frame.
	Tools []string

	// Tool and Result carry the outcome of a single tool call for
	// EventToolResult frames. Result is the raw payload as sent by the
	// backend; it typically contains a "success" flag and, for tools that
	// spawn background work, a "task_id".
	Tool   string
	Result map[string]any

	// Err carries the backend-reported error string for EventError frames.
	Err string
}

// Success reports whether a tool_result payload indicates success.
func (e Event) Success() bool {
	if e.Type != EventToolResult || e.Result == nil {
		return false
	}
	ok, _ := e.Result["success"].(bool)
	return ok
}

// TaskID extracts a background task handle from a tool_result payload.
// Returns the empty string when the payload carries none.
func (e Event) TaskID() string {
	if e.Type != EventToolResult || e.Result == nil {
		return ""
	}
	id, _ := e.Result["task_id"].(string)
	return id
}
