package models

import (
	"strconv"
	"strings"
	"time"
)

// Intent classifies what a user message is asking the assistant to do.
type Intent string

const (
	IntentStoreFact      Intent = "store_fact"
	IntentQueryFact      Intent = "query_fact"
	IntentCreateReminder Intent = "create_reminder"
	IntentQueryReminders Intent = "query_reminders"
	IntentListAdd        Intent = "list_add"
	IntentListQuery      Intent = "list_query"
	IntentConverse       Intent = "converse"
)

// AllIntents lists every intent the router may return.
var AllIntents = []Intent{
	IntentStoreFact,
	IntentQueryFact,
	IntentCreateReminder,
	IntentQueryReminders,
	IntentListAdd,
	IntentListQuery,
	IntentConverse,
}

// MediaType categorizes pre-normalized media attachments.
type MediaType string

const (
	MediaPhoto    MediaType = "photo"
	MediaVoice    MediaType = "voice"
	MediaDocument MediaType = "document"
	MediaLocation MediaType = "location"
)

// MediaReference points at media the transport layer already normalized.
// Voice messages carry their transcript; locations carry coordinates.
type MediaReference struct {
	Type       MediaType `json:"type"`
	Path       string    `json:"path,omitempty"`
	Latitude   float64   `json:"latitude,omitempty"`
	Longitude  float64   `json:"longitude,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
}

// InboundMessage is a message arriving from the chat transport.
type InboundMessage struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id"`
	Text           string          `json:"text"`
	Media          *MediaReference `json:"media,omitempty"`
	ReceivedAt     time.Time       `json:"received_at"`
}

// OutboundMessage is a reply to deliver to the user.
type OutboundMessage struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// FieldKind discriminates the FieldValue union.
type FieldKind int

const (
	FieldNull FieldKind = iota
	FieldString
	FieldStringList
	FieldNumber
)

// FieldValue is a tagged union for collected operation fields. Merging
// collected fields stays a typed operation instead of string-keyed
// dynamic access.
type FieldValue struct {
	Kind FieldKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	List []string  `json:"list,omitempty"`
	Num  float64   `json:"num,omitempty"`
}

// StringValue builds a string field value. Empty strings become null.
func StringValue(s string) FieldValue {
	if strings.TrimSpace(s) == "" {
		return FieldValue{Kind: FieldNull}
	}
	return FieldValue{Kind: FieldString, Str: s}
}

// ListValue builds a string-list field value. Empty lists become null.
func ListValue(items []string) FieldValue {
	if len(items) == 0 {
		return FieldValue{Kind: FieldNull}
	}
	return FieldValue{Kind: FieldStringList, List: items}
}

// NumberValue builds a numeric field value.
func NumberValue(n float64) FieldValue {
	return FieldValue{Kind: FieldNumber, Num: n}
}

// NullValue builds an explicit null field value.
func NullValue() FieldValue {
	return FieldValue{Kind: FieldNull}
}

// IsNull reports whether the value carries no data.
func (v FieldValue) IsNull() bool {
	switch v.Kind {
	case FieldNull:
		return true
	case FieldString:
		return v.Str == ""
	case FieldStringList:
		return len(v.List) == 0
	}
	return false
}

// AsString renders the value for prompts and tool arguments.
func (v FieldValue) AsString() string {
	switch v.Kind {
	case FieldString:
		return v.Str
	case FieldStringList:
		return strings.Join(v.List, ", ")
	case FieldNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return ""
}

// Fields is a typed collection of gathered operation fields.
type Fields map[string]FieldValue

// Merge copies non-null values from other into a copy of f. Values already
// present are not overwritten; the first extraction wins.
func (f Fields) Merge(other Fields) Fields {
	merged := make(Fields, len(f)+len(other))
	for k, v := range f {
		merged[k] = v
	}
	for k, v := range other {
		if v.IsNull() {
			continue
		}
		if existing, ok := merged[k]; ok && !existing.IsNull() {
			continue
		}
		merged[k] = v
	}
	return merged
}

// Has reports whether a non-null value exists for the field.
func (f Fields) Has(name string) bool {
	v, ok := f[name]
	return ok && !v.IsNull()
}

// Memory is one long-term memory entry with its embedding.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Score     float64   `json:"score"`
}

// Task is a stored reminder.
type Task struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	DueAt     *time.Time `json:"due_at,omitempty"`
	People    []string   `json:"people,omitempty"`
	Location  string     `json:"location,omitempty"`
	Done      bool       `json:"done"`
	CreatedAt time.Time  `json:"created_at"`
}

// ListEntry is one item on a named list.
type ListEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ListName  string    `json:"list_name"`
	Item      string    `json:"item"`
	Quantity  string    `json:"quantity,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Fact is a subject/predicate/object statement in the knowledge graph.
type Fact struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Subject    string    `json:"subject"`
	Predicate  string    `json:"predicate"`
	Object     string    `json:"object"`
	Statement  string    `json:"statement"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredItem is a search hit from any backing source.
type ScoredItem struct {
	Source  string  `json:"source"`
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Display string  `json:"display"`
}

// ToolCallRecord captures one tool invocation for auditing.
type ToolCallRecord struct {
	Tool           string        `json:"tool"`
	ConversationID string        `json:"conversation_id"`
	UserID         string        `json:"user_id"`
	Args           Fields        `json:"args"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
	Timestamp      time.Time     `json:"timestamp"`
}
