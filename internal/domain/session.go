package domain

import (
	"time"
)

// State is the position of a conversation in the survey dialogue.
type State string

const (
	StateIdle                State = "idle"
	StateWaitingConfirmation State = "waiting_confirmation"
	StateWaitingScore        State = "waiting_score"
	StateWaitingFeedback     State = "waiting_feedback"
	StateCompleted           State = "completed"
	StateManualMode          State = "manual_mode"
)

func (s State) String() string {
	return string(s)
}

type Sender string

const (
	SenderUser    Sender = "user"
	SenderBot     Sender = "bot"
	SenderSystem  Sender = "system"
	SenderManager Sender = "manager"
)

type Message struct {
	Sender    Sender
	Text      string
	Timestamp time.Time
}

// Session is the per-identity survey record. Only the conversation manager mutates it.
type Session struct {
	Identity   string
	State      State
	NPSScore   *int
	Feedback   string
	Sentiment  Sentiment
	History    []Message
	Identified bool
	Customer   *Customer
	ManualMode bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewSession(identity string, now time.Time) *Session {
	return &Session{
		Identity:  identity,
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ResetRound clears everything collected in the current round. Identity and
// customer identification survive.
func (s *Session) ResetRound(now time.Time) {
	s.State = StateIdle
	s.NPSScore = nil
	s.Feedback = ""
	s.Sentiment = ""
	s.History = nil
	s.ManualMode = false
	s.UpdatedAt = now
}

func (s *Session) Append(sender Sender, text string, now time.Time) {
	s.History = append(s.History, Message{Sender: sender, Text: text, Timestamp: now})
	s.UpdatedAt = now
}

// SessionView is the serializable snapshot of a session.
type SessionView struct {
	Identity      string    `json:"chat_id"`
	State         State     `json:"state"`
	NPSScore      *int      `json:"nps_score"`
	Feedback      string    `json:"feedback_text"`
	Sentiment     Sentiment `json:"sentiment,omitempty"`
	MessagesCount int       `json:"messages_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ManualMode    bool      `json:"manual_mode"`
	Identified    bool      `json:"identified"`
	CustomerName  string    `json:"customer_name,omitempty"`
}

func (s *Session) View() SessionView {
	v := SessionView{
		Identity:      s.Identity,
		State:         s.State,
		Feedback:      s.Feedback,
		Sentiment:     s.Sentiment,
		MessagesCount: len(s.History),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		ManualMode:    s.ManualMode,
		Identified:    s.Identified,
	}
	if s.NPSScore != nil {
		score := *s.NPSScore
		v.NPSScore = &score
	}
	if s.Customer != nil {
		v.CustomerName = s.Customer.FirstName
	}
	return v
}
