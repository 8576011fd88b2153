package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"pulseops.app/pulse/internal/model"
)

type eventStore struct {
	db DBTX
}

func newEventStore(db DBTX) EventStore {
	return &eventStore{db: db}
}

const eventColumns = `id, tenant_id, name, source, correlation_id, user_id, payload, status, error, processed_at, created_at`

func (s *eventStore) Create(ctx context.Context, event *model.Event) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO events (id, tenant_id, name, source, correlation_id, user_id, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		event.ID, event.TenantID, event.Name, event.Source, event.CorrelationID,
		event.UserID, event.Payload, event.Status,
	)
	return row.Scan(&event.CreatedAt)
}

func (s *eventStore) GetByID(ctx context.Context, tenantID string, id int64) (*model.Event, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanEvent(row)
}

func (s *eventStore) ListRecent(ctx context.Context, tenantID string, since time.Time, limit int32) ([]model.Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE tenant_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`,
		tenantID, since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func (s *eventStore) MarkProcessed(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE events
		SET status = $1, processed_at = now()
		WHERE id = $2`,
		model.EventStatusProcessed, id,
	)
	return err
}

func (s *eventStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE events
		SET status = $1, error = $2, processed_at = now()
		WHERE id = $3`,
		model.EventStatusFailed, errMsg, id,
	)
	return err
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var event model.Event
	err := row.Scan(
		&event.ID, &event.TenantID, &event.Name, &event.Source, &event.CorrelationID,
		&event.UserID, &event.Payload, &event.Status, &event.Error,
		&event.ProcessedAt, &event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}
