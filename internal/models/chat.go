package models

// ChatSender identifies which side of the conversation produced a message.
type ChatSender string

const (
	SenderUser      ChatSender = "user"
	SenderAssistant ChatSender = "assistant"
)

// ChatMsg is one turn in a conversation history, earliest first.
type ChatMsg struct {
	Sender ChatSender `json:"sender"`
	Text   string     `json:"text"`
}
