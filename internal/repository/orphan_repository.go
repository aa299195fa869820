package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shrs-dev/report-vault/internal/models"
)

// OrphanRepository persists the audit trail of two-phase partial failures.
type OrphanRepository struct {
	db *sqlx.DB
}

// NewOrphanRepository constructs the repository.
func NewOrphanRepository(db *sqlx.DB) *OrphanRepository {
	return &OrphanRepository{db: db}
}

// Record stores one partial-failure event.
func (r *OrphanRepository) Record(ctx context.Context, event *models.OrphanEvent) error {
	if event.DetectedAt.IsZero() {
		event.DetectedAt = time.Now().UTC()
	}
	const query = `INSERT INTO orphan_objects (object_key, report_id, patient_id, phase, detail, detected_at)
	VALUES (:object_key, :report_id, :patient_id, :phase, :detail, :detected_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("record orphan event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first.
func (r *OrphanRepository) List(ctx context.Context, limit int) ([]models.OrphanEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, object_key, report_id, patient_id, phase, detail, detected_at
	FROM orphan_objects ORDER BY detected_at DESC LIMIT %d`, limit)
	var events []models.OrphanEvent
	if err := r.db.SelectContext(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("list orphan events: %w", err)
	}
	return events, nil
}
