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

type catalogRepoStub struct {
	records    []models.ReportRecord
	scanErr    error
	scanCalls  int
	updateErr  error
	lastPatch  models.ReportPatch
	lastKey    [2]string
	updateHits int
}

func (r *catalogRepoStub) Scan(ctx context.Context) ([]models.ReportRecord, error) {
	r.scanCalls++
	if r.scanErr != nil {
		return nil, r.scanErr
	}
	out := make([]models.ReportRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

func (r *catalogRepoStub) GetByKey(ctx context.Context, patientID, reportID string) (*models.ReportRecord, error) {
	for _, rec := range r.records {
		if rec.PatientID == patientID && rec.ReportID == reportID {
			copied := rec
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *catalogRepoStub) UpdateFields(ctx context.Context, patientID, reportID string, patch models.ReportPatch) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updateHits++
	r.lastKey = [2]string{patientID, reportID}
	r.lastPatch = patch
	return nil
}

func newTestCatalogService(repo *catalogRepoStub) *CatalogService {
	metrics := NewMetricsService()
	cache := NewCacheService(nil, metrics, 0, nil, false)
	return NewCatalogService(repo, cache, metrics, nil)
}

func catalogFixture() []models.ReportRecord {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []models.ReportRecord{
		{
			ReportID: "r1", PatientID: "p1", ObjectKey: "r1_blood.pdf",
			OriginalName: "blood.pdf", ContentType: "application/pdf",
			Title: "Blood Panel", ReportType: models.ReportTypeLab,
			Doctor: "Dr. Osei", Tags: "cardio,annual", Description: "Annual panel",
			Status: models.ReportStatusPending, UploadedAt: base,
		},
		{
			ReportID: "r2", PatientID: "p1", ObjectKey: "r2_rx.pdf",
			OriginalName: "rx.pdf", ContentType: "application/pdf",
			Title: "Statin Refill", ReportType: models.ReportTypePrescription,
			Doctor: "Dr. Lin", Tags: "", Description: "Refill",
			Status: models.ReportStatusReviewed, UploadedAt: base.Add(time.Hour),
		},
		{
			ReportID: "r3", PatientID: "p2", ObjectKey: "r3_mri.png",
			OriginalName: "mri.png", ContentType: "image/png",
			Title: "Knee MRI", ReportType: models.ReportTypeScan,
			Doctor: "Dr. Osei", Tags: "ortho", Description: "Left knee",
			Status: models.ReportStatusPending, UploadedAt: base.Add(2 * time.Hour),
		},
	}
}

func TestDeriveIsIdempotent(t *testing.T) {
	records := catalogFixture()
	query := models.CatalogQuery{Search: "osei", Sort: models.SortNewest}

	first := Derive(records, query)
	second := Derive(records, query)
	require.Equal(t, first, second)

	// The input set is never reordered or mutated.
	require.Equal(t, catalogFixture(), records)
}

func TestDeriveTypeFilter(t *testing.T) {
	records := catalogFixture()

	entries := Derive(records, models.CatalogQuery{TypeFilter: "prescription"})
	require.Len(t, entries, 1)
	require.Equal(t, "r2", entries[0].ReportID)

	// Rows written before the reportType field existed match on their stored
	// content type.
	legacy := models.ReportRecord{ReportID: "r4", PatientID: "p2", ContentType: "application/pdf", UploadedAt: time.Now()}
	entries = Derive(append(records, legacy), models.CatalogQuery{TypeFilter: "pdf"})
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ReportID)
	}
	require.Contains(t, ids, "r4")
}

func TestDeriveSearchMatchesAnyField(t *testing.T) {
	records := catalogFixture()

	// Tags participate in the search alongside name, title, doctor and
	// description.
	entries := Derive(records, models.CatalogQuery{Search: "CARDIO"})
	require.Len(t, entries, 1)
	require.Equal(t, "r1", entries[0].ReportID)

	entries = Derive(records, models.CatalogQuery{Search: "osei"})
	require.Len(t, entries, 2)

	entries = Derive(records, models.CatalogQuery{Search: "no-such-term"})
	require.Empty(t, entries)
}

func TestDeriveFiltersCompose(t *testing.T) {
	entries := Derive(catalogFixture(), models.CatalogQuery{TypeFilter: "scan", Search: "osei"})
	require.Len(t, entries, 1)
	require.Equal(t, "r3", entries[0].ReportID)

	entries = Derive(catalogFixture(), models.CatalogQuery{TypeFilter: "scan", Search: "lin"})
	require.Empty(t, entries)
}

func TestDeriveSortOrderAndStability(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	records := []models.ReportRecord{
		{ReportID: "a", UploadedAt: t1},
		{ReportID: "b", UploadedAt: t2},
		{ReportID: "c", UploadedAt: t1},
	}

	newest := Derive(records, models.CatalogQuery{Sort: models.SortNewest})
	require.Equal(t, []string{"b", "a", "c"}, entryIDs(newest))

	oldest := Derive(records, models.CatalogQuery{Sort: models.SortOldest})
	require.Equal(t, []string{"a", "c", "b"}, entryIDs(oldest))
}

func entryIDs(entries []models.CatalogEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ReportID
	}
	return ids
}

func TestCatalogServiceListDerivesView(t *testing.T) {
	repo := &catalogRepoStub{records: catalogFixture()}
	svc := newTestCatalogService(repo)

	entries, err := svc.List(context.Background(), models.CatalogQuery{Sort: models.SortNewest})
	require.NoError(t, err)
	require.Equal(t, []string{"r3", "r2", "r1"}, entryIDs(entries))
	require.Equal(t, 1, repo.scanCalls)

	// Listing again re-scans; the editing overlay never survives a load.
	_, err = svc.List(context.Background(), models.CatalogQuery{Sort: models.SortNewest})
	require.NoError(t, err)
	require.Equal(t, 2, repo.scanCalls)
}

func TestCatalogServiceLoadErrorIsTyped(t *testing.T) {
	repo := &catalogRepoStub{scanErr: fmt.Errorf("connection refused")}
	svc := newTestCatalogService(repo)

	_, err := svc.List(context.Background(), models.CatalogQuery{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrCatalogLoad.Code, appErr.Code)
}

func TestCatalogServiceEditCancelRestoresSnapshot(t *testing.T) {
	repo := &catalogRepoStub{records: catalogFixture()}
	svc := newTestCatalogService(repo)
	_, err := svc.List(context.Background(), models.CatalogQuery{})
	require.NoError(t, err)

	require.NoError(t, svc.BeginEdit("p1", "r1"))

	draft := "Lipid Panel"
	require.NoError(t, svc.UpdateDraft("p1", "r1", models.ReportPatch{Title: &draft}))
	require.Equal(t, "Lipid Panel", findEntry(t, svc, "r1").Title)

	require.NoError(t, svc.CancelEdit("p1", "r1"))
	entry := findEntry(t, svc, "r1")
	require.Equal(t, "Blood Panel", entry.Title)
	require.False(t, entry.Editing)

	// Nothing reached the store.
	require.Zero(t, repo.updateHits)
}

func TestCatalogServiceUpdateDraftRequiresEdit(t *testing.T) {
	repo := &catalogRepoStub{records: catalogFixture()}
	svc := newTestCatalogService(repo)
	_, err := svc.List(context.Background(), models.CatalogQuery{})
	require.NoError(t, err)

	title := "x"
	err = svc.UpdateDraft("p1", "r1", models.ReportPatch{Title: &title})
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	err = svc.BeginEdit("p9", "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCatalogServiceSaveWritesAndReconciles(t *testing.T) {
	repo := &catalogRepoStub{records: catalogFixture()}
	svc := newTestCatalogService(repo)
	_, err := svc.List(context.Background(), models.CatalogQuery{})
	require.NoError(t, err)

	require.NoError(t, svc.BeginEdit("p1", "r1"))

	title := "Lipid Panel"
	status := models.ReportStatusReviewed
	saved, err := svc.Save(context.Background(), "p1", "r1", models.ReportPatch{Title: &title, Status: &status})
	require.NoError(t, err)
	require.Equal(t, "Lipid Panel", saved.Title)
	require.Equal(t, models.ReportStatusReviewed, saved.Status)

	require.Equal(t, [2]string{"p1", "r1"}, repo.lastKey)
	require.NotNil(t, repo.lastPatch.Title)

	entry := findEntry(t, svc, "r1")
	require.Equal(t, "Lipid Panel", entry.Title)
	require.False(t, entry.Editing)

	// A later cancel is a no-op: the snapshot was discarded by the save.
	require.NoError(t, svc.CancelEdit("p1", "r1"))
	require.Equal(t, "Lipid Panel", findEntry(t, svc, "r1").Title)
}

func TestCatalogServiceSaveMissingRow(t *testing.T) {
	repo := &catalogRepoStub{records: catalogFixture(), updateErr: sql.ErrNoRows}
	svc := newTestCatalogService(repo)

	title := "x"
	_, err := svc.Save(context.Background(), "p1", "r1", models.ReportPatch{Title: &title})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCatalogServiceRemoveSplicesEntry(t *testing.T) {
	repo := &catalogRepoStub{records: catalogFixture()}
	svc := newTestCatalogService(repo)
	_, err := svc.List(context.Background(), models.CatalogQuery{})
	require.NoError(t, err)

	svc.Remove("p1", "r2")

	require.Len(t, svc.Records(), 2)
	require.NotContains(t, entryIDs(svc.Entries()), "r2")
	// The store was not re-scanned for the splice.
	require.Equal(t, 1, repo.scanCalls)
}

func TestCatalogServiceGetFallsBackToStore(t *testing.T) {
	repo := &catalogRepoStub{records: catalogFixture()}
	svc := newTestCatalogService(repo)

	record, err := svc.Get(context.Background(), "p2", "r3")
	require.NoError(t, err)
	require.Equal(t, "Knee MRI", record.Title)

	_, err = svc.Get(context.Background(), "p2", "missing")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func findEntry(t *testing.T, svc *CatalogService, reportID string) models.CatalogEntry {
	t.Helper()
	for _, e := range svc.Entries() {
		if e.ReportID == reportID {
			return e
		}
	}
	t.Fatalf("entry %s not found", reportID)
	return models.CatalogEntry{}
}
