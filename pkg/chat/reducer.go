package chat

import (
	"github.com/geeth24/xpool-agent/pkg/stream"
)

// StreamFailureMessage replaces the assistant turn's content when the
// transport fails mid-stream. The turn is not retried.
const StreamFailureMessage = "Sorry, something went wrong while contacting the assistant. Please try again."

// Apply folds one stream event into the conversation. It is a pure state
// transition: the input conversation is never mutated.
//
// Events only ever touch the last message, and only when it is an assistant
// turn; anything else is ignored.
func Apply(conv Conversation, event stream.Event) Conversation {
	last, ok := GetLastMessage(conv)
	if !ok || !last.IsAssistant() {
		return conv
	}

	switch event.Type {
	case stream.EventContent:
		msg := last.clone()
		msg.Content += event.Content
		// Text arriving means the tool phase, if any, has yielded to generation
		msg.AwaitingTools = false
		return replaceLast(conv, msg)

	case stream.EventToolStart:
		msg := last.clone()
		// The backend is the sole source of truth for what is executing;
		// a second tool_start replaces the whole batch.
		msg.ToolInvocations = make([]ToolInvocation, len(event.Tools))
		for i, name := range event.Tools {
			msg.ToolInvocations[i] = ToolInvocation{Name: name, Executing: true}
		}
		msg.AwaitingTools = true
		return replaceLast(conv, msg)

	case stream.EventToolResult:
		msg := last.clone()
		// Results correlate by name only. If one batch ran the same tool
		// twice, every matching invocation resolves identically.
		for i := range msg.ToolInvocations {
			if msg.ToolInvocations[i].Name == event.Tool {
				msg.ToolInvocations[i].Executing = false
				msg.ToolInvocations[i].Result = event.Result
			}
		}
		return replaceLast(conv, msg)

	default:
		return conv
	}
}

// CloseStream marks the last assistant message as no longer streaming,
// leaving content and tool state as last observed. Invocations that never
// received a result stay Executing.
func CloseStream(conv Conversation) Conversation {
	last, ok := GetLastMessage(conv)
	if !ok || !last.IsAssistant() {
		return conv
	}

	msg := last.clone()
	msg.Streaming = false
	return replaceLast(conv, msg)
}

// FailStream terminates the current assistant turn after a transport
// failure: its content becomes the fixed failure string and streaming ends.
func FailStream(conv Conversation) Conversation {
	last, ok := GetLastMessage(conv)
	if !ok || !last.IsAssistant() {
		return conv
	}

	msg := last.clone()
	msg.Content = StreamFailureMessage
	msg.Streaming = false
	msg.AwaitingTools = false
	return replaceLast(conv, msg)
}
