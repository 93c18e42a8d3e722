package models

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// NormalizeSender maps stored sender aliases onto the canonical set.
// Older rows use "pilot" for the assistant.
func NormalizeSender(s string) Sender {
	switch Sender(s) {
	case SenderUser, SenderAssistant, SenderSystem:
		return Sender(s)
	}
	if s == "pilot" {
		return SenderAssistant
	}
	return Sender(s)
}

// Status is the delivery state of a message within a transcript.
type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusError   Status = "error"
)

// Attachment is a file reference owned by a single message. BlobRef is an
// opaque locator (URL or local handle); no upload semantics live here.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	BlobRef  string `json:"blob_ref,omitempty"`
}

// ChecklistItem is an auxiliary annotation on assistant messages.
type ChecklistItem struct {
	Label string `json:"label"`
	Done  bool   `json:"done,omitempty"`
}

type Message struct {
	ID      string `json:"id"`
	ChatID  string `json:"chat_id,omitempty"`
	Sender  Sender `json:"sender"`
	Content string `json:"content"`
	// TS is the creation timestamp (ns)
	TS     int64  `json:"ts"`
	Status Status `json:"status,omitempty"`
	// ReplyToID is a weak reference to an earlier message in the same
	// transcript; dangling ids are allowed and render as "unknown".
	ReplyToID   string       `json:"reply_to_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// Sources and Checklist are optional annotations on assistant
	// messages; nil means "not applicable", not "empty".
	Sources   []string        `json:"sources,omitempty"`
	Checklist []ChecklistItem `json:"checklist,omitempty"`
}
