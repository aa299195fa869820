package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shrs-dev/report-vault/internal/models"
	appErrors "github.com/shrs-dev/report-vault/pkg/errors"
)

type deleteRepoStub struct {
	record      *models.ReportRecord
	deleteErr   error
	deleteCalls int
}

func (r *deleteRepoStub) GetByKey(ctx context.Context, patientID, reportID string) (*models.ReportRecord, error) {
	if r.record == nil || r.record.PatientID != patientID || r.record.ReportID != reportID {
		return nil, sql.ErrNoRows
	}
	copied := *r.record
	return &copied, nil
}

func (r *deleteRepoStub) Delete(ctx context.Context, patientID, reportID string) error {
	r.deleteCalls++
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.record = nil
	return nil
}

type reconcilerStub struct {
	removed     [][2]string
	invalidated int
}

func (c *reconcilerStub) Remove(patientID, reportID string) {
	c.removed = append(c.removed, [2]string{patientID, reportID})
}

func (c *reconcilerStub) InvalidateScan(ctx context.Context) {
	c.invalidated++
}

func deleteFixtureRecord() *models.ReportRecord {
	return &models.ReportRecord{
		ReportID:   "r1",
		PatientID:  "p1",
		ObjectKey:  "r1_blood.pdf",
		Title:      "Blood Panel",
		UploadedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestDeleteRemovesObjectThenRecord(t *testing.T) {
	repo := &deleteRepoStub{record: deleteFixtureRecord()}
	store := newObjectStoreStub()
	store.objects["r1_blood.pdf"] = []byte("%PDF-1.4")
	catalog := &reconcilerStub{}
	svc := NewDeleteService(repo, store, &orphanNotifierStub{}, catalog, NewMetricsService(), nil)

	err := svc.Delete(context.Background(), "p1", "r1")
	require.NoError(t, err)

	require.Empty(t, store.objects)
	require.Nil(t, repo.record)
	require.Equal(t, [][2]string{{"p1", "r1"}}, catalog.removed)
	require.Equal(t, 1, catalog.invalidated)
}

func TestDeleteUnknownKey(t *testing.T) {
	svc := NewDeleteService(&deleteRepoStub{}, newObjectStoreStub(), &orphanNotifierStub{}, &reconcilerStub{}, NewMetricsService(), nil)

	err := svc.Delete(context.Background(), "p1", "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDeleteObjectFailureSkipsRecordDelete(t *testing.T) {
	repo := &deleteRepoStub{record: deleteFixtureRecord()}
	store := newObjectStoreStub()
	store.err = fmt.Errorf("bucket unavailable")
	catalog := &reconcilerStub{}
	orphans := &orphanNotifierStub{}
	svc := NewDeleteService(repo, store, orphans, catalog, NewMetricsService(), nil)

	err := svc.Delete(context.Background(), "p1", "r1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrObjectDelete.Code, appErrors.FromError(err).Code)

	// Phase 2 is never attempted after a phase 1 failure: record and object
	// remain consistent, nothing to audit, nothing spliced.
	require.Zero(t, repo.deleteCalls)
	require.NotNil(t, repo.record)
	require.Empty(t, orphans.events)
	require.Empty(t, catalog.removed)
}

func TestDeleteRecordFailureLeavesDanglingRecord(t *testing.T) {
	repo := &deleteRepoStub{record: deleteFixtureRecord(), deleteErr: fmt.Errorf("table gone")}
	store := newObjectStoreStub()
	store.objects["r1_blood.pdf"] = []byte("%PDF-1.4")
	catalog := &reconcilerStub{}
	orphans := &orphanNotifierStub{}
	svc := NewDeleteService(repo, store, orphans, catalog, NewMetricsService(), nil)

	err := svc.Delete(context.Background(), "p1", "r1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrRecordDelete.Code, appErrors.FromError(err).Code)

	// The object is gone, the record remains, and the dangling state is
	// surfaced through the audit trail rather than repaired.
	require.Empty(t, store.objects)
	require.NotNil(t, repo.record)
	require.Len(t, orphans.events, 1)
	require.Equal(t, models.OrphanPhaseRecordDelete, orphans.events[0].Phase)
	require.Equal(t, "r1_blood.pdf", orphans.events[0].ObjectKey)
	require.Empty(t, catalog.removed)
}

func TestDeleteMissingObjectIsIdempotent(t *testing.T) {
	// A store that treats deleting an absent key as success lets a retry after
	// a dangling-record failure converge.
	repo := &deleteRepoStub{record: deleteFixtureRecord()}
	store := newObjectStoreStub()
	catalog := &reconcilerStub{}
	svc := NewDeleteService(repo, store, &orphanNotifierStub{}, catalog, NewMetricsService(), nil)

	err := svc.Delete(context.Background(), "p1", "r1")
	require.NoError(t, err)
	require.Nil(t, repo.record)
}
