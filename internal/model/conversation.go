package model

type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
	MessageTypeSystem    MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeUser, MessageTypeAssistant, MessageTypeSystem:
		return true
	}
	return false
}

type Conversation struct {
	ID           int64  `json:"id" db:"id"`
	UserID       string `json:"user_id" db:"user_id"`
	Title        string `json:"title" db:"title"`
	Ctime        int64  `json:"ctime" db:"ctime"`
	Mtime        int64  `json:"mtime" db:"mtime"`
	MessageCount int64  `json:"message_count" db:"message_count"`
}

type Message struct {
	ID             int64       `json:"id" db:"id"`
	ConversationID int64       `json:"conversation_id" db:"conversation_id"`
	UserID         string      `json:"user_id" db:"user_id"`
	Content        string      `json:"content" db:"content"`
	MessageType    MessageType `json:"message_type" db:"message_type"`
	Ctime          int64       `json:"ctime" db:"ctime"`
}
