package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shrs-dev/report-vault/internal/models"
)

// ReportRepository is the record store holding report metadata rows, keyed by
// the composite (patient_id, report_id).
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// selectColumns defaults optional descriptive fields on read so that rows
// written by older schema variants never fail a scan.
const selectColumns = `SELECT report_id, patient_id, object_key, original_name, content_type,
       COALESCE(title, 'Untitled Report') AS title,
       COALESCE(report_type, 'Other') AS report_type,
       COALESCE(doctor, 'Unknown') AS doctor,
       COALESCE(report_date, '') AS report_date,
       COALESCE(tags, '') AS tags,
       COALESCE(description, 'No description') AS description,
       COALESCE(status, 'Pending') AS status,
       uploaded_at
FROM reports`

// Scan returns every metadata row. Ordering is whatever the store delivers;
// the catalog engine imposes its own.
func (r *ReportRepository) Scan(ctx context.Context) ([]models.ReportRecord, error) {
	var records []models.ReportRecord
	if err := r.db.SelectContext(ctx, &records, selectColumns); err != nil {
		return nil, fmt.Errorf("scan reports: %w", err)
	}
	return records, nil
}

// GetByKey retrieves one row by its composite key.
func (r *ReportRepository) GetByKey(ctx context.Context, patientID, reportID string) (*models.ReportRecord, error) {
	const query = selectColumns + ` WHERE patient_id = $1 AND report_id = $2`
	var record models.ReportRecord
	if err := r.db.GetContext(ctx, &record, query, patientID, reportID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Put inserts a new metadata row.
func (r *ReportRepository) Put(ctx context.Context, record *models.ReportRecord) error {
	if record.UploadedAt.IsZero() {
		record.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reports
	(report_id, patient_id, object_key, original_name, content_type, title, report_type, doctor, report_date, tags, description, status, uploaded_at)
	VALUES (:report_id, :patient_id, :object_key, :original_name, :content_type, :title, :report_type, :doctor, :report_date, :tags, :description, :status, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("put report record: %w", err)
	}
	return nil
}

// UpdateFields applies a partial update of the mutable descriptive fields,
// keyed by (patientID, reportID). Identity and object fields are immutable
// and never appear in the SET list.
func (r *ReportRepository) UpdateFields(ctx context.Context, patientID, reportID string, patch models.ReportPatch) error {
	sets := make([]string, 0, 7)
	args := make([]interface{}, 0, 9)

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.ReportType != nil {
		add("report_type", *patch.ReportType)
	}
	if patch.Doctor != nil {
		add("doctor", *patch.Doctor)
	}
	if patch.ReportDate != nil {
		add("report_date", *patch.ReportDate)
	}
	if patch.Tags != nil {
		add("tags", *patch.Tags)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, patientID)
	patientArg := len(args)
	args = append(args, reportID)
	reportArg := len(args)

	query := fmt.Sprintf("UPDATE reports SET %s WHERE patient_id = $%d AND report_id = $%d",
		strings.Join(sets, ", "), patientArg, reportArg)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update report record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check report update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a row by its composite key.
func (r *ReportRepository) Delete(ctx context.Context, patientID, reportID string) error {
	const query = `DELETE FROM reports WHERE patient_id = $1 AND report_id = $2`
	res, err := r.db.ExecContext(ctx, query, patientID, reportID)
	if err != nil {
		return fmt.Errorf("delete report record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check report delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
