package rag

type EventType string

const (
	EventThinking EventType = "thinking"
	EventChunk    EventType = "chunk"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one element of the ordered stream a query produces. Exactly one
// terminal event (complete or error) ends every stream.
type Event struct {
	Type           EventType `json:"type"`
	Message        string    `json:"message,omitempty"`
	Content        string    `json:"content,omitempty"`
	Sources        []string  `json:"sources,omitempty"`
	SearchMethod   string    `json:"search_method,omitempty"`
	Cached         bool      `json:"cached,omitempty"`
	ConversationID int64     `json:"conversation_id,omitempty"`
}

// EmitFunc receives stream events in order. Returning a non-nil error aborts
// the stream, typically because the client disconnected.
type EmitFunc func(Event) error

const (
	SearchMethodDocuments = "user_documents"
	SearchMethodGeneral   = "general_knowledge"
)
