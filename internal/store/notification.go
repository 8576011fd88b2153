package store

import (
	"context"

	"pulseops.app/pulse/internal/model"
)

type notificationStore struct {
	db DBTX
}

func newNotificationStore(db DBTX) NotificationStore {
	return &notificationStore{db: db}
}

func (s *notificationStore) Create(ctx context.Context, notification *model.Notification) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO notifications (id, tenant_id, user_id, channel, title, body, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		notification.ID, notification.TenantID, notification.UserID,
		notification.Channel, notification.Title, notification.Body, notification.Metadata,
	)
	return row.Scan(&notification.CreatedAt)
}

func (s *notificationStore) ListRecent(ctx context.Context, tenantID string, limit int32) ([]model.Notification, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, user_id, channel, title, body, metadata, created_at
		FROM notifications
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.UserID, &n.Channel, &n.Title, &n.Body, &n.Metadata, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}
