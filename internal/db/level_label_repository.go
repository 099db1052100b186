package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcastroba/red-simpatizantes/internal/models"
)

// LevelLabelRepository handles per-owner level label overrides
type LevelLabelRepository struct {
	db *Database
}

// NewLevelLabelRepository creates a new level label repository
func NewLevelLabelRepository(db *Database) *LevelLabelRepository {
	return &LevelLabelRepository{db: db}
}

// ListLevelLabels returns the owner's labels ordered by level
func (r *LevelLabelRepository) ListLevelLabels(ctx context.Context, ownerID int64) ([]models.LevelLabel, error) {
	rows, err := r.db.DB.QueryContext(ctx, `
		SELECT id, owner_id, level, name, updated_at
		FROM level_labels
		WHERE owner_id = $1
		ORDER BY level`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query level labels: %w", err)
	}
	defer rows.Close()

	labels := []models.LevelLabel{}
	for rows.Next() {
		var l models.LevelLabel
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.Level, &l.Name, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan level label: %w", err)
		}
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over level labels: %w", err)
	}
	return labels, nil
}

// UpsertLevelLabel sets the name of one level for the owner
func (r *LevelLabelRepository) UpsertLevelLabel(ctx context.Context, ownerID int64, level int, name string) (*models.LevelLabel, error) {
	var l models.LevelLabel
	err := r.db.DB.QueryRowContext(ctx, `
		INSERT INTO level_labels (owner_id, level, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, level) DO UPDATE SET name = EXCLUDED.name, updated_at = now()
		RETURNING id, owner_id, level, name, updated_at`, ownerID, level, name,
	).Scan(&l.ID, &l.OwnerID, &l.Level, &l.Name, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert level label: %w", err)
	}
	return &l, nil
}

// DeleteLevelLabel removes an override; ErrNotFound when none existed
func (r *LevelLabelRepository) DeleteLevelLabel(ctx context.Context, ownerID int64, level int) error {
	var id int64
	err := r.db.DB.QueryRowContext(ctx,
		`DELETE FROM level_labels WHERE owner_id = $1 AND level = $2 RETURNING id`, ownerID, level,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete level label: %w", err)
	}
	return nil
}
