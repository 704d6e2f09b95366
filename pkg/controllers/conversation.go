package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/geeth24/xpool-agent/pkg/chat"
	"github.com/geeth24/xpool-agent/pkg/logger"
	"github.com/geeth24/xpool-agent/pkg/prompt"
	"github.com/geeth24/xpool-agent/pkg/stream"
	"github.com/geeth24/xpool-agent/pkg/tasks"
	"github.com/geeth24/xpool-agent/pkg/xpool"
)

var (
	// ErrTurnInFlight rejects a submit while a previous turn is still
	// streaming. At most one conversational turn is in flight at a time.
	ErrTurnInFlight = errors.New("a conversational turn is already in flight")

	ErrEmptyMessage = errors.New("message content cannot be empty")
)

// StreamOpener opens an assistant turn over the message history and returns
// the raw frame stream.
type StreamOpener interface {
	StreamChat(ctx context.Context, messages []xpool.ChatMessage) (io.ReadCloser, error)
}

// ConversationController owns the message sequence and the task registry.
// All conversation mutation funnels through Submit; all task mutation
// through the registry it holds. Readers get copies and may be called from
// any goroutine.
type ConversationController struct {
	mu           sync.RWMutex
	client       StreamOpener
	conversation chat.Conversation
	registry     *tasks.Registry
	inFlight     bool
	onEvent      func(stream.Event)
}

// NewConversationController creates a controller over the given stream
// opener and task registry.
func NewConversationController(client StreamOpener, registry *tasks.Registry) *ConversationController {
	return &ConversationController{
		client:       client,
		conversation: chat.NewConversation(),
		registry:     registry,
	}
}

// SetOnEvent installs a callback invoked after each stream event has been
// applied, for live rendering. Called from the goroutine driving Submit.
func (cc *ConversationController) SetOnEvent(fn func(stream.Event)) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.onEvent = fn
}

// Submit sends one user turn and drives the assistant's response stream to
// completion. displayText is what the user sees and what history keeps;
// wireText is what the backend receives for this turn. Prior history is
// always sent in display form.
//
// Submit blocks until the turn reaches a terminal state. Concurrent submits
// are rejected with ErrTurnInFlight, never queued.
func (cc *ConversationController) Submit(ctx context.Context, displayText, wireText string) error {
	if strings.TrimSpace(displayText) == "" {
		return ErrEmptyMessage
	}
	if strings.TrimSpace(wireText) == "" {
		wireText = displayText
	}

	outbound, err := cc.beginTurn(displayText, wireText)
	if err != nil {
		return err
	}
	defer cc.endTurn()

	body, err := cc.client.StreamChat(ctx, outbound)
	if err != nil {
		cc.failTurn()
		return fmt.Errorf("failed to open assistant stream: %w", err)
	}
	defer body.Close()

	return cc.drainStream(stream.NewScanner(body), displayText)
}

// SubmitSelection compiles a sourcing wizard selection and submits it.
func (cc *ConversationController) SubmitSelection(ctx context.Context, sel prompt.Selection) error {
	compiled := prompt.Compile(sel)
	return cc.Submit(ctx, compiled.Display, compiled.Wire)
}

// beginTurn claims the in-flight slot, appends the user turn and the empty
// streaming assistant turn, and builds the outbound wire history.
func (cc *ConversationController) beginTurn(displayText, wireText string) ([]xpool.ChatMessage, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.inFlight {
		return nil, ErrTurnInFlight
	}
	cc.inFlight = true

	// History reuses prior display text; only the new turn goes out in wire
	// form. The empty assistant placeholder is not part of the payload.
	outbound := make([]xpool.ChatMessage, 0, len(cc.conversation.Messages)+1)
	for _, msg := range cc.conversation.Messages {
		outbound = append(outbound, xpool.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	outbound = append(outbound, xpool.ChatMessage{Role: chat.RoleUser, Content: wireText})

	cc.conversation = chat.AddMessage(cc.conversation, chat.NewUserMessage(displayText))
	cc.conversation = chat.AddMessage(cc.conversation, chat.NewStreamingAssistantMessage())

	return outbound, nil
}

func (cc *ConversationController) endTurn() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.inFlight = false
}

func (cc *ConversationController) failTurn() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.conversation = chat.FailStream(cc.conversation)
}

// drainStream applies events in arrival order until the stream ends.
func (cc *ConversationController) drainStream(scanner *stream.Scanner, originQuery string) error {
	for {
		event, err := scanner.Next()
		if err == io.EOF {
			cc.mu.Lock()
			cc.conversation = chat.CloseStream(cc.conversation)
			cc.mu.Unlock()
			return nil
		}
		if err != nil {
			cc.failTurn()
			return fmt.Errorf("assistant stream failed: %w", err)
		}

		if event.Type == stream.EventError {
			logger.Error("backend reported stream error: %s", event.Err)
			cc.failTurn()
			return fmt.Errorf("assistant stream failed: %s", event.Err)
		}

		cc.mu.Lock()
		cc.conversation = chat.Apply(cc.conversation, event)
		onEvent := cc.onEvent
		cc.mu.Unlock()

		cc.trackSpawnedTask(event, originQuery)

		if onEvent != nil {
			onEvent(event)
		}
	}
}

// trackSpawnedTask registers a background job when a successful tool result
// carries a task handle.
func (cc *ConversationController) trackSpawnedTask(event stream.Event, originQuery string) {
	if cc.registry == nil || event.Type != stream.EventToolResult {
		return
	}
	if !event.Success() {
		return
	}

	taskID := event.TaskID()
	if taskID == "" {
		return
	}

	jobID, _ := event.Result["job_id"].(string)
	cc.registry.Register(taskID, tasks.Metadata{
		Tool:  event.Tool,
		Query: originQuery,
		JobID: jobID,
	})
}

// Messages returns a copy of the conversation for rendering.
func (cc *ConversationController) Messages() []chat.Message {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return chat.GetMessages(cc.conversation)
}

// LastAssistantMessage returns the most recent assistant turn.
func (cc *ConversationController) LastAssistantMessage() (chat.Message, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return chat.GetLastAssistantMessage(cc.conversation)
}

// MessageCount returns the number of messages in the conversation.
func (cc *ConversationController) MessageCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return chat.GetMessageCount(cc.conversation)
}

// InFlight reports whether a turn is currently streaming.
func (cc *ConversationController) InFlight() bool {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.inFlight
}

// Restore seeds the conversation from persisted history. Rejected while a
// turn is in flight.
func (cc *ConversationController) Restore(messages []chat.Message) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if cc.inFlight {
		return ErrTurnInFlight
	}

	conv := chat.NewConversation()
	for _, msg := range messages {
		conv = chat.AddMessage(conv, msg)
	}
	cc.conversation = conv
	return nil
}

// Tasks returns the registry's current snapshot.
func (cc *ConversationController) Tasks() []tasks.TrackedTask {
	if cc.registry == nil {
		return nil
	}
	return cc.registry.Snapshot()
}

// ActiveTasks returns the number of tracked tasks still running.
func (cc *ConversationController) ActiveTasks() int {
	if cc.registry == nil {
		return 0
	}
	return cc.registry.Active()
}

// DismissTask removes a tracked task. The underlying backend job is
// unaffected.
func (cc *ConversationController) DismissTask(taskID string) {
	if cc.registry != nil {
		cc.registry.Dismiss(taskID)
	}
}
