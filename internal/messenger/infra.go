package messenger

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Tuvshee555/Auto-reception/internal/ai"
	"github.com/Tuvshee555/Auto-reception/internal/booking"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Repo {
	return &repo{db: db}
}

func (r *repo) SaveMessage(ctx context.Context, msg *MessageRecord) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, message_id, text, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		ON CONFLICT (message_id) DO NOTHING
	`,
		msg.ID,
		msg.SenderID,
		msg.MessageID,
		msg.Text,
		msg.CreatedAt,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateMessage
	}
	return nil
}

func (r *repo) SaveBooking(ctx context.Context, b *booking.Booking) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bookings (id, sender_id, name, phone, date_text, time_text, service, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		b.ID,
		b.SenderID,
		b.Name,
		b.Phone,
		b.DateText,
		b.TimeText,
		b.Service,
		b.Message,
		b.Status,
		b.CreatedAt,
	)
	return err
}

func (r *repo) GetSettings(ctx context.Context) (ai.BusinessSettings, error) {
	var s ai.BusinessSettings
	err := r.db.QueryRowContext(ctx, `
		SELECT name, phone, address, hours, services, prices
		FROM settings
		ORDER BY id
		LIMIT 1
	`).Scan(
		&s.Name,
		&s.Phone,
		&s.Address,
		&s.Hours,
		&s.Services,
		&s.Prices,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ai.BusinessSettings{}, nil
	}
	return s, err
}
