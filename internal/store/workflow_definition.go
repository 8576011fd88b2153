package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pulseops.app/pulse/internal/model"
)

type workflowDefinitionStore struct {
	db DBTX
}

func newWorkflowDefinitionStore(db DBTX) WorkflowDefinitionStore {
	return &workflowDefinitionStore{db: db}
}

const definitionColumns = `id, tenant_id, name, steps, is_active, created_at, updated_at`

func (s *workflowDefinitionStore) Create(ctx context.Context, def *model.WorkflowDefinition) error {
	steps, err := json.Marshal(def.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO workflow_definitions (id, tenant_id, name, steps, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		def.ID, def.TenantID, def.Name, steps, def.IsActive,
	)
	return row.Scan(&def.CreatedAt, &def.UpdatedAt)
}

func (s *workflowDefinitionStore) GetByID(ctx context.Context, tenantID string, id int64) (*model.WorkflowDefinition, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+definitionColumns+`
		FROM workflow_definitions
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanDefinition(row)
}

func (s *workflowDefinitionStore) GetActiveByName(ctx context.Context, tenantID string, name string) (*model.WorkflowDefinition, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+definitionColumns+`
		FROM workflow_definitions
		WHERE tenant_id = $1 AND name = $2 AND is_active`,
		tenantID, name,
	)
	return scanDefinition(row)
}

func (s *workflowDefinitionStore) SetActive(ctx context.Context, tenantID string, name string, active bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE workflow_definitions
		SET is_active = $1, updated_at = now()
		WHERE tenant_id = $2 AND name = $3`,
		active, tenantID, name,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *workflowDefinitionStore) ListByTenant(ctx context.Context, tenantID string) ([]model.WorkflowDefinition, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+definitionColumns+`
		FROM workflow_definitions
		WHERE tenant_id = $1
		ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []model.WorkflowDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, rows.Err()
}

func scanDefinition(row pgx.Row) (*model.WorkflowDefinition, error) {
	var (
		def   model.WorkflowDefinition
		steps []byte
	)
	err := row.Scan(&def.ID, &def.TenantID, &def.Name, &steps, &def.IsActive, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(steps, &def.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &def, nil
}
