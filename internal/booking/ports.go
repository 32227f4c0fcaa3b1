package booking

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("booking: session not found")

// Field names a slot, in the order they are asked for.
type Field string

const (
	FieldDate  Field = "date"
	FieldTime  Field = "time"
	FieldName  Field = "name"
	FieldPhone Field = "phone"
)

// Slots is what one message contributed. Empty means "not found".
type Slots struct {
	Name  string
	Phone string
	Date  string
	Time  string
}

func (s Slots) Empty() bool {
	return s.Name == "" && s.Phone == "" && s.Date == "" && s.Time == ""
}

// Session is the per-sender booking conversation. There is at most one per
// sender; a closed session stays stored with Active=false.
type Session struct {
	SenderID  string    `json:"sender_id" bson:"sender_id"`
	Active    bool      `json:"active" bson:"active"`
	Name      string    `json:"name" bson:"name"`
	Phone     string    `json:"phone" bson:"phone"`
	Date      string    `json:"date" bson:"date"`
	Time      string    `json:"time" bson:"time"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Missing lists unset fields in date, time, name, phone order.
func (s *Session) Missing() []Field {
	var out []Field
	if s.Date == "" {
		out = append(out, FieldDate)
	}
	if s.Time == "" {
		out = append(out, FieldTime)
	}
	if s.Name == "" {
		out = append(out, FieldName)
	}
	if s.Phone == "" {
		out = append(out, FieldPhone)
	}
	return out
}

func (s *Session) Complete() bool {
	return len(s.Missing()) == 0
}

const StatusPending = "pending"

// Booking is emitted once per completed session. Status changes after
// "pending" belong to a human reviewer.
type Booking struct {
	ID        string    `json:"id" bson:"_id"`
	SenderID  string    `json:"sender_id" bson:"sender_id"`
	Name      string    `json:"name" bson:"name"`
	Phone     string    `json:"phone" bson:"phone"`
	DateText  string    `json:"date_text" bson:"date_text"`
	TimeText  string    `json:"time_text" bson:"time_text"`
	Service   string    `json:"service,omitempty" bson:"service,omitempty"`
	Message   string    `json:"message" bson:"message"`
	Status    string    `json:"status" bson:"status"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// SessionStore persists sessions. Upsert is an atomic read-modify-write per
// sender so concurrent merges cannot lose a field.
type SessionStore interface {
	Get(ctx context.Context, senderID string) (*Session, error)
	// Open creates the sender's session, or resets a stored one, as active
	// with every field empty.
	Open(ctx context.Context, senderID string) (*Session, error)
	// Upsert merges the non-empty slots and returns the merged session.
	Upsert(ctx context.Context, senderID string, slots Slots) (*Session, error)
	Close(ctx context.Context, senderID string) error
}

// Merge overwrites a field only when the new value is non-empty. Merging
// the same slots twice is the same as merging once.
func Merge(s Session, slots Slots) Session {
	if slots.Name != "" {
		s.Name = slots.Name
	}
	if slots.Phone != "" {
		s.Phone = slots.Phone
	}
	if slots.Date != "" {
		s.Date = slots.Date
	}
	if slots.Time != "" {
		s.Time = slots.Time
	}
	return s
}
