package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shrs-dev/report-vault/internal/models"
	appErrors "github.com/shrs-dev/report-vault/pkg/errors"
	"github.com/shrs-dev/report-vault/pkg/jobs"
)

type orphanStore interface {
	Record(ctx context.Context, event *models.OrphanEvent) error
	List(ctx context.Context, limit int) ([]models.OrphanEvent, error)
}

// OrphanService maintains the audit trail of two-phase partial failures.
// Events are written asynchronously through a background queue so that the
// failing user operation is never slowed down further, and are only ever
// recorded, never acted upon; reconciliation stays an operator decision.
type OrphanService struct {
	repo   orphanStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewOrphanService constructs the service and its queue.
func NewOrphanService(repo orphanStore, logger *zap.Logger, cfg jobs.QueueConfig) *OrphanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &OrphanService{repo: repo, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("orphan-audit", s.handle, cfg)
	return s
}

// Start launches the audit workers.
func (s *OrphanService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the audit workers.
func (s *OrphanService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a partial-failure event. Enqueue failures are logged and
// dropped: the audit trail is best effort and must never mask the original
// two-phase error.
func (s *OrphanService) Notify(event models.OrphanEvent) {
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(event.Phase),
		Payload: event,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue orphan event",
			zap.String("object_key", event.ObjectKey),
			zap.Error(err))
	}
}

// List returns recorded events, newest first.
func (s *OrphanService) List(ctx context.Context, limit int) ([]models.OrphanEvent, error) {
	events, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orphan events")
	}
	return events, nil
}

func (s *OrphanService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.OrphanEvent)
	if !ok {
		s.logger.Error("orphan job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := s.repo.Record(ctx, &event); err != nil {
		return err
	}
	s.logger.Info("orphan event recorded",
		zap.String("object_key", event.ObjectKey),
		zap.String("phase", string(event.Phase)))
	return nil
}
