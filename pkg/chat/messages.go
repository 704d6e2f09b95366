package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is one turn in a conversation. Assistant messages are built up
// incrementally while Streaming is true; user and system messages are
// immutable after creation.
type Message struct {
	ID              string           `json:"id"`
	Role            string           `json:"role"`
	Content         string           `json:"content"`
	Streaming       bool             `json:"streaming"`
	AwaitingTools   bool             `json:"awaiting_tools"`
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// ToolInvocation is one named tool call inside an assistant turn. Result is
// nil while the tool is executing and set at most once by its result event.
type ToolInvocation struct {
	Name      string         `json:"name"`
	Executing bool           `json:"executing"`
	Result    map[string]any `json:"result,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   strings.TrimSpace(content),
		Timestamp: time.Now(),
	}
}

// NewStreamingAssistantMessage creates the empty assistant turn that a
// response stream will fill in.
func NewStreamingAssistantMessage() Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Streaming: true,
		Timestamp: time.Now(),
	}
}

func NewSystemMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleSystem,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}

func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

// HasExecutingTools reports whether any invocation is still awaiting its
// result.
func (m Message) HasExecutingTools() bool {
	for _, inv := range m.ToolInvocations {
		if inv.Executing {
			return true
		}
	}
	return false
}

// clone returns a copy of m whose invocation list is independent of the
// original, so reducer steps never mutate shared state.
func (m Message) clone() Message {
	out := m
	if m.ToolInvocations != nil {
		out.ToolInvocations = make([]ToolInvocation, len(m.ToolInvocations))
		copy(out.ToolInvocations, m.ToolInvocations)
	}
	return out
}
