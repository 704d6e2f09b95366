package chat

// Conversation is the ordered message sequence for one session. Values are
// treated as immutable; every mutation path returns a new Conversation.
type Conversation struct {
	Messages []Message
}

func NewConversation() Conversation {
	return Conversation{Messages: make([]Message, 0)}
}

func AddMessage(conv Conversation, msg Message) Conversation {
	messages := make([]Message, len(conv.Messages)+1)
	copy(messages, conv.Messages)
	messages[len(conv.Messages)] = msg

	return Conversation{Messages: messages}
}

func GetMessages(conv Conversation) []Message {
	result := make([]Message, len(conv.Messages))
	copy(result, conv.Messages)
	return result
}

func GetMessageCount(conv Conversation) int {
	return len(conv.Messages)
}

func GetLastMessage(conv Conversation) (Message, bool) {
	if len(conv.Messages) == 0 {
		return Message{}, false
	}
	return conv.Messages[len(conv.Messages)-1], true
}

func GetLastAssistantMessage(conv Conversation) (Message, bool) {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].IsAssistant() {
			return conv.Messages[i], true
		}
	}
	return Message{}, false
}

func GetLastUserMessage(conv Conversation) (Message, bool) {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].IsUser() {
			return conv.Messages[i], true
		}
	}
	return Message{}, false
}

func IsEmpty(conv Conversation) bool {
	return len(conv.Messages) == 0
}

// replaceLast swaps the final message for msg, reusing the prefix.
func replaceLast(conv Conversation, msg Message) Conversation {
	messages := make([]Message, len(conv.Messages))
	copy(messages, conv.Messages)
	messages[len(messages)-1] = msg

	return Conversation{Messages: messages}
}
