package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrs-dev/report-vault/internal/models"
)

func TestOrphanRepositoryRecord(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewOrphanRepository(db)

	mock.ExpectExec("INSERT INTO orphan_objects").
		WithArgs("r1_blood.pdf", "r1", "p1", "RECORD_WRITE", "metadata write failed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.OrphanEvent{
		ObjectKey: "r1_blood.pdf",
		ReportID:  "r1",
		PatientID: "p1",
		Phase:     models.OrphanPhaseRecordWrite,
		Detail:    "metadata write failed",
	}
	require.NoError(t, repo.Record(context.Background(), event))
	assert.False(t, event.DetectedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrphanRepositoryList(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewOrphanRepository(db)

	rows := sqlmock.NewRows([]string{"id", "object_key", "report_id", "patient_id", "phase", "detail", "detected_at"}).
		AddRow(int64(2), "r2_rx.pdf", "r2", "p1", "RECORD_DELETE", "table gone", time.Now()).
		AddRow(int64(1), "r1_blood.pdf", "r1", "p1", "RECORD_WRITE", "metadata write failed", time.Now().Add(-time.Hour))
	mock.ExpectQuery("FROM orphan_objects ORDER BY detected_at DESC LIMIT 2").
		WillReturnRows(rows)

	events, err := repo.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.OrphanPhaseRecordDelete, events[0].Phase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrphanRepositoryListClampsLimit(t *testing.T) {
	db, mock, cleanup := newReportRepoMock(t)
	defer cleanup()
	repo := NewOrphanRepository(db)

	mock.ExpectQuery("FROM orphan_objects ORDER BY detected_at DESC LIMIT 100").
		WillReturnRows(sqlmock.NewRows([]string{"id", "object_key", "report_id", "patient_id", "phase", "detail", "detected_at"}))

	events, err := repo.List(context.Background(), -5)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
