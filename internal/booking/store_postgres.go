package booking

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore relies on row-level upserts for per-sender atomicity, so it
// is safe across several server processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `sender_id, active, name, phone, date_text, time_text, updated_at`

func (p *PostgresStore) Get(ctx context.Context, senderID string) (*Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM booking_sessions
		WHERE sender_id = $1
	`, senderID)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return s, err
}

func (p *PostgresStore) Open(ctx context.Context, senderID string) (*Session, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO booking_sessions (sender_id, active, name, phone, date_text, time_text, updated_at)
		VALUES ($1, TRUE, '', '', '', '', now())
		ON CONFLICT (sender_id) DO UPDATE SET
			active = TRUE,
			name = '',
			phone = '',
			date_text = '',
			time_text = '',
			updated_at = now()
		RETURNING `+sessionColumns, senderID)

	return scanSession(row)
}

func (p *PostgresStore) Upsert(ctx context.Context, senderID string, slots Slots) (*Session, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO booking_sessions (sender_id, active, name, phone, date_text, time_text, updated_at)
		VALUES ($1, TRUE, $2, $3, $4, $5, now())
		ON CONFLICT (sender_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), booking_sessions.name),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), booking_sessions.phone),
			date_text = COALESCE(NULLIF(EXCLUDED.date_text, ''), booking_sessions.date_text),
			time_text = COALESCE(NULLIF(EXCLUDED.time_text, ''), booking_sessions.time_text),
			updated_at = now()
		RETURNING `+sessionColumns,
		senderID,
		slots.Name,
		slots.Phone,
		slots.Date,
		slots.Time,
	)

	return scanSession(row)
}

func (p *PostgresStore) Close(ctx context.Context, senderID string) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE booking_sessions
		SET active = FALSE, updated_at = now()
		WHERE sender_id = $1
	`, senderID)
	return err
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	if err := row.Scan(
		&s.SenderID,
		&s.Active,
		&s.Name,
		&s.Phone,
		&s.Date,
		&s.Time,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
