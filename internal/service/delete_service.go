package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shrs-dev/report-vault/internal/models"
	appErrors "github.com/shrs-dev/report-vault/pkg/errors"
)

type deleteRecordStore interface {
	GetByKey(ctx context.Context, patientID, reportID string) (*models.ReportRecord, error)
	Delete(ctx context.Context, patientID, reportID string) error
}

type deleteObjectStore interface {
	Delete(key string) error
}

type catalogReconciler interface {
	Remove(patientID, reportID string)
	InvalidateScan(ctx context.Context)
}

// DeleteService coordinates the two-phase report delete: object first, then
// record. Ordering matters: a phase 1 failure leaves record and object intact
// and consistent, so phase 2 is never attempted after it. A phase 2 failure
// leaves a record pointing at a missing object, which is surfaced and
// recorded, not auto-repaired. There is no rollback path once phase 1 has
// committed.
type DeleteService struct {
	repo    deleteRecordStore
	store   deleteObjectStore
	orphans orphanNotifier
	catalog catalogReconciler
	metrics *MetricsService
	logger  *zap.Logger
}

// NewDeleteService constructs the coordinator.
func NewDeleteService(repo deleteRecordStore, store deleteObjectStore, orphans orphanNotifier, catalog catalogReconciler, metrics *MetricsService, logger *zap.Logger) *DeleteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeleteService{
		repo:    repo,
		store:   store,
		orphans: orphans,
		catalog: catalog,
		metrics: metrics,
		logger:  logger,
	}
}

// Delete removes the object and then the record for the given composite key.
// On full success the entry is spliced out of the catalog's held collections
// so the view reflects the deletion without a reload.
func (s *DeleteService) Delete(ctx context.Context, patientID, reportID string) error {
	record, err := s.repo.GetByKey(ctx, patientID, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}

	// Phase 1: object delete. Abort before phase 2 on failure; the record
	// still references an existing object.
	if err := s.store.Delete(record.ObjectKey); err != nil {
		s.metrics.RecordDelete("object_delete_failed")
		s.logger.Warn("object delete failed",
			zap.String("object_key", record.ObjectKey),
			zap.String("report_id", reportID),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrObjectDelete.Code, appErrors.ErrObjectDelete.Status, appErrors.ErrObjectDelete.Message)
	}

	// Phase 2: record delete.
	start := time.Now()
	err = s.repo.Delete(ctx, patientID, reportID)
	s.metrics.ObserveDBQuery("reports_delete", time.Since(start))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.metrics.RecordDelete("record_delete_dangling")
		s.metrics.RecordPartialFailure(string(models.OrphanPhaseRecordDelete))
		if s.orphans != nil {
			s.orphans.Notify(models.OrphanEvent{
				ObjectKey: record.ObjectKey,
				ReportID:  reportID,
				PatientID: patientID,
				Phase:     models.OrphanPhaseRecordDelete,
				Detail:    err.Error(),
			})
		}
		s.logger.Error("record delete failed after object delete",
			zap.String("object_key", record.ObjectKey),
			zap.String("report_id", reportID),
			zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrRecordDelete.Code, appErrors.ErrRecordDelete.Status, appErrors.ErrRecordDelete.Message)
	}

	s.metrics.RecordDelete("success")
	if s.catalog != nil {
		s.catalog.Remove(patientID, reportID)
		s.catalog.InvalidateScan(ctx)
	}
	return nil
}
