package triage

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status tracks where a session is in its lifecycle.
type Status string

const (
	// StatusActive means the session is still gathering information.
	StatusActive Status = "active"

	// StatusComplete means the session has finalized a result. Terminal.
	StatusComplete Status = "complete"
)

// UrgencyLevel is the core triage output. Exactly one level per session.
type UrgencyLevel string

const (
	// UrgencyEmergency: immediate medical attention required (minutes).
	UrgencyEmergency UrgencyLevel = "EMERGENCY"

	// UrgencyUrgent: prompt medical attention required (hours).
	UrgencyUrgent UrgencyLevel = "URGENT"

	// UrgencySemiUrgent: medical attention required the same day.
	UrgencySemiUrgent UrgencyLevel = "SEMI_URGENT"

	// UrgencyNonUrgent: routine care (days).
	UrgencyNonUrgent UrgencyLevel = "NON_URGENT"

	// UrgencyUnknown: no usable urgency signal.
	UrgencyUnknown UrgencyLevel = "UNKNOWN"
)

// Message is one conversation entry. The sequence is append-only and its
// order is semantically significant for prompting and turn counting.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// PatientContext is supplied once at session creation and read-only after.
type PatientContext struct {
	Name           string `json:"name,omitempty"`
	Age            int    `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	MedicalHistory string `json:"medical_history,omitempty"`
	ChiefComplaint string `json:"chief_complaint"`
}

// Source is a reference excerpt attached to a result for auditability.
type Source struct {
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Truncated bool              `json:"truncated,omitempty"`
}

// Result is the structured outcome of a session. Created exactly once, at
// completion, and immutable afterwards.
type Result struct {
	UrgencyLevel       UrgencyLevel `json:"urgency_level"`
	RecommendedAction  string       `json:"recommended_action"`
	Timeframe          string       `json:"timeframe,omitempty"`
	Reasoning          string       `json:"reasoning"`
	MissingInformation []string     `json:"missing_information,omitempty"`
	WarningSigns       []string     `json:"warning_signs,omitempty"`
	Sources            []Source     `json:"sources,omitempty"`
	Disclaimer         string       `json:"disclaimer"`
}

// Session is one triage conversation. It is mutated only by the request
// handling its current turn; Result is present iff Status is complete.
type Session struct {
	ID            string         `json:"id"`
	Patient       PatientContext `json:"patient"`
	Messages      []Message      `json:"messages"`
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
	Status        Status         `json:"status"`
	Result        *Result        `json:"result,omitempty"`

	// Sources accumulates every distinct reference chunk consulted across
	// the session's turns; the final result cites them.
	Sources []Source `json:"sources,omitempty"`
}

// UserTurns counts the user messages submitted so far.
func (s *Session) UserTurns() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Clone returns a deep copy safe to hand across the store boundary.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	cp.Sources = append([]Source(nil), s.Sources...)
	if s.Result != nil {
		r := *s.Result
		r.MissingInformation = append([]string(nil), s.Result.MissingInformation...)
		r.WarningSigns = append([]string(nil), s.Result.WarningSigns...)
		r.Sources = append([]Source(nil), s.Result.Sources...)
		cp.Result = &r
	}
	return &cp
}

func (s *Session) append(role Role, content string, now time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: now})
	s.LastUpdatedAt = now
}

// conversationText flattens user and assistant turns for keyword scanning.
func (s *Session) conversationText() string {
	return strings.Join(s.turnContents(), "\n")
}

// turnContents returns user and assistant message contents in order, used as
// prior-turn context for retrieval and for urgency keyword scanning.
func (s *Session) turnContents() []string {
	var out []string
	for _, m := range s.Messages {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m.Content)
	}
	return out
}
