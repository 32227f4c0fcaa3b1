package messenger

import (
	"context"
	"errors"
	"time"

	"github.com/Tuvshee555/Auto-reception/internal/ai"
	"github.com/Tuvshee555/Auto-reception/internal/booking"
)

// ErrDuplicateMessage is returned by Repo.SaveMessage when the platform
// redelivers a message id that is already stored.
var ErrDuplicateMessage = errors.New("messenger: duplicate message")

// InboundEvent is one text message from a page conversation.
type InboundEvent struct {
	SenderID   string
	Text       string
	MessageID  string
	IsEcho     bool
	ReceivedAt time.Time
}

// MessageRecord is the append-only history entry for an inbound message.
type MessageRecord struct {
	ID        string    `json:"id" bson:"_id"`
	SenderID  string    `json:"sender_id" bson:"sender_id"`
	MessageID string    `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type Outcome string

const (
	OutcomeAI          Outcome = "ai"
	OutcomePrompt      Outcome = "prompt"
	OutcomeBooked      Outcome = "booked"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeIgnored     Outcome = "ignored"
)

// Repo persists history and bookings and reads business settings.
type Repo interface {
	SaveMessage(ctx context.Context, msg *MessageRecord) error
	SaveBooking(ctx context.Context, b *booking.Booking) error
	ai.SettingsReader
}

// Outbound is the platform Send API.
type Outbound interface {
	SendTyping(ctx context.Context, psid string) error
	SendText(ctx context.Context, psid string, text string) error
}

// Responder produces a free-text answer. It never fails.
type Responder interface {
	Reply(ctx context.Context, text string) string
}

// Service is the conversation controller.
type Service interface {
	HandleEvent(ctx context.Context, ev InboundEvent) (Outcome, error)
}
