package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"pulseops.app/pulse/internal/model"
)

type insightStore struct {
	db DBTX
}

func newInsightStore(db DBTX) InsightStore {
	return &insightStore{db: db}
}

const insightColumns = `id, tenant_id, category, severity, title, summary, confidence, source_event_id, metadata, created_at`

func (s *insightStore) Create(ctx context.Context, insight *model.Insight) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO insights
			(id, tenant_id, category, severity, title, summary, confidence, source_event_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		insight.ID, insight.TenantID, insight.Category, insight.Severity,
		insight.Title, insight.Summary, insight.Confidence, insight.SourceEventID, insight.Metadata,
	)
	return row.Scan(&insight.CreatedAt)
}

func (s *insightStore) GetByID(ctx context.Context, tenantID string, id int64) (*model.Insight, error) {
	var insight model.Insight
	err := s.db.QueryRow(ctx, `
		SELECT `+insightColumns+`
		FROM insights
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(
		&insight.ID, &insight.TenantID, &insight.Category, &insight.Severity,
		&insight.Title, &insight.Summary, &insight.Confidence, &insight.SourceEventID,
		&insight.Metadata, &insight.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &insight, nil
}

func (s *insightStore) ListRecent(ctx context.Context, tenantID string, limit int32) ([]model.Insight, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+insightColumns+`
		FROM insights
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var insights []model.Insight
	for rows.Next() {
		var insight model.Insight
		if err := rows.Scan(
			&insight.ID, &insight.TenantID, &insight.Category, &insight.Severity,
			&insight.Title, &insight.Summary, &insight.Confidence, &insight.SourceEventID,
			&insight.Metadata, &insight.CreatedAt,
		); err != nil {
			return nil, err
		}
		insights = append(insights, insight)
	}
	return insights, rows.Err()
}
