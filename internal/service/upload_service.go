package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shrs-dev/report-vault/internal/dto"
	"github.com/shrs-dev/report-vault/internal/models"
	appErrors "github.com/shrs-dev/report-vault/pkg/errors"
)

type uploadRecordStore interface {
	Put(ctx context.Context, record *models.ReportRecord) error
}

type uploadObjectStore interface {
	Put(key string, r io.Reader, contentType string) error
}

type orphanNotifier interface {
	Notify(event models.OrphanEvent)
}

type scanInvalidator interface {
	InvalidateScan(ctx context.Context)
}

// ReportUpload carries the binary payload and its declared attributes.
type ReportUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// ProgressFunc receives advisory progress values (0, 30, 70, 100). It carries
// no correctness weight and may be nil.
type ProgressFunc func(percent int)

// UploadServiceConfig holds validation parameters.
type UploadServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// UploadService coordinates the two-phase report upload: the binary object
// write followed by the metadata record write. The two stores share no
// transaction; a phase 2 failure leaves an orphan object which is surfaced to
// the caller and recorded for the audit trail, never silently repaired.
type UploadService struct {
	repo    uploadRecordStore
	store   uploadObjectStore
	orphans orphanNotifier
	catalog scanInvalidator
	metrics *MetricsService
	logger  *zap.Logger
	cfg     UploadServiceConfig
	mimeSet map[string]struct{}
	now     func() time.Time
}

// NewUploadService constructs the coordinator with defaults.
func NewUploadService(repo uploadRecordStore, store uploadObjectStore, orphans orphanNotifier, catalog scanInvalidator, metrics *MetricsService, logger *zap.Logger, cfg UploadServiceConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &UploadService{
		repo:    repo,
		store:   store,
		orphans: orphans,
		catalog: catalog,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		mimeSet: mimeSet,
		now:     time.Now,
	}
}

// Upload validates the input, then runs the two-phase write. Validation
// failures happen before any store contact, so no partial state is ever
// created for them. A phase 1 failure aborts with nothing persisted; a fresh
// reportID is generated on retry, so the operation is always safely
// retriable from scratch.
func (s *UploadService) Upload(ctx context.Context, meta dto.UploadReportRequest, upload ReportUpload, progress ProgressFunc) (*models.ReportRecord, error) {
	report := func(p int) {
		if progress != nil {
			progress(p)
		}
	}
	report(0)

	if strings.TrimSpace(meta.PatientID) == "" {
		s.metrics.RecordUpload("validation")
		return nil, appErrors.Clone(appErrors.ErrValidation, "patientId is required")
	}
	if err := meta.Validate(); err != nil {
		s.metrics.RecordUpload("validation")
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report metadata")
	}
	if upload.Content == nil || upload.Size <= 0 || strings.TrimSpace(upload.Filename) == "" {
		s.metrics.RecordUpload("validation")
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		s.metrics.RecordUpload("validation")
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		s.metrics.RecordUpload("validation")
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		s.metrics.RecordUpload("validation")
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}

	reportID := uuid.NewString()
	objectKey := reportID + "_" + sanitizeFilename(upload.Filename)
	now := s.now().UTC()

	// Phase 1: binary object write.
	report(30)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if err := s.store.Put(objectKey, upload.Content, mimeType); err != nil {
		s.metrics.RecordUpload("object_write_failed")
		s.logger.Warn("object write failed", zap.String("object_key", objectKey), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrObjectWrite.Code, appErrors.ErrObjectWrite.Status, appErrors.ErrObjectWrite.Message)
	}
	report(70)

	record := &models.ReportRecord{
		ReportID:     reportID,
		PatientID:    strings.TrimSpace(meta.PatientID),
		ObjectKey:    objectKey,
		OriginalName: upload.Filename,
		ContentType:  mimeType,
		Title:        defaultString(meta.Title, models.DefaultTitle),
		ReportType:   models.ReportTypeOther,
		Doctor:       defaultString(meta.Doctor, models.DefaultDoctor),
		ReportDate:   defaultString(meta.ReportDate, now.Format("2006-01-02")),
		Tags:         meta.Tags,
		Description:  defaultString(meta.Description, models.DefaultDescription),
		Status:       models.ReportStatusPending,
		UploadedAt:   now,
	}
	if meta.ReportType != "" {
		record.ReportType = models.ReportType(meta.ReportType)
	}

	// Phase 2: metadata record write. On failure the object stays behind as
	// an orphan; the caller is told the upload partially completed.
	if err := s.repo.Put(ctx, record); err != nil {
		s.metrics.RecordUpload("record_write_partial")
		s.metrics.RecordPartialFailure(string(models.OrphanPhaseRecordWrite))
		s.notifyOrphan(models.OrphanEvent{
			ObjectKey: objectKey,
			ReportID:  reportID,
			PatientID: record.PatientID,
			Phase:     models.OrphanPhaseRecordWrite,
			Detail:    err.Error(),
		})
		s.logger.Error("record write failed after object write",
			zap.String("object_key", objectKey),
			zap.String("report_id", reportID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrRecordWrite.Code, appErrors.ErrRecordWrite.Status, appErrors.ErrRecordWrite.Message)
	}
	report(100)

	s.metrics.RecordUpload("success")
	if s.catalog != nil {
		s.catalog.InvalidateScan(ctx)
	}
	return record, nil
}

func (s *UploadService) detectMime(upload ReportUpload) (string, error) {
	if upload.MimeType != "" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func (s *UploadService) notifyOrphan(event models.OrphanEvent) {
	if s.orphans == nil {
		return
	}
	s.orphans.Notify(event)
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
