package messenger

import (
	"context"
	"sync"

	"github.com/Tuvshee555/Auto-reception/internal/ai"
	"github.com/Tuvshee555/Auto-reception/internal/booking"
)

// MemoryRepo keeps history and bookings in process memory and serves
// settings fixed at startup.
type MemoryRepo struct {
	ai.StaticSettings

	mu       sync.Mutex
	seen     map[string]struct{}
	messages []MessageRecord
	bookings []booking.Booking
}

func NewMemoryRepo(settings ai.BusinessSettings) *MemoryRepo {
	return &MemoryRepo{
		StaticSettings: ai.StaticSettings(settings),
		seen:           make(map[string]struct{}),
	}
}

func (r *MemoryRepo) SaveMessage(_ context.Context, msg *MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.MessageID != "" {
		if _, ok := r.seen[msg.MessageID]; ok {
			return ErrDuplicateMessage
		}
		r.seen[msg.MessageID] = struct{}{}
	}
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *MemoryRepo) SaveBooking(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, *b)
	return nil
}

func (r *MemoryRepo) Messages() []MessageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]MessageRecord(nil), r.messages...)
}

func (r *MemoryRepo) Bookings() []booking.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]booking.Booking(nil), r.bookings...)
}
