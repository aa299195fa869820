package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shrs-dev/report-vault/internal/models"
	appErrors "github.com/shrs-dev/report-vault/pkg/errors"
)

const catalogScanCacheKey = "catalog:scan"

type catalogRecordStore interface {
	Scan(ctx context.Context) ([]models.ReportRecord, error)
	GetByKey(ctx context.Context, patientID, reportID string) (*models.ReportRecord, error)
	UpdateFields(ctx context.Context, patientID, reportID string, patch models.ReportPatch) error
}

// Derive computes the ordered catalog view for a record set and query. It is
// a pure function: identical inputs always yield identical output, and the
// input slice is never mutated.
//
// Filters apply in fixed order. The type filter matches against the report
// type, falling back to the stored content type for rows written before the
// reportType field existed. The search term matches case-insensitively
// against any of name, description, title, doctor or tags. The final sort by
// upload time is stable, so equal timestamps keep their encounter order.
func Derive(records []models.ReportRecord, query models.CatalogQuery) []models.CatalogEntry {
	entries := make([]models.CatalogEntry, 0, len(records))

	typeFilter := strings.ToLower(strings.TrimSpace(query.TypeFilter))
	search := strings.ToLower(strings.TrimSpace(query.Search))

	for _, record := range records {
		if typeFilter != "" && !matchesType(record, typeFilter) {
			continue
		}
		if search != "" && !matchesSearch(record, search) {
			continue
		}
		entries = append(entries, models.CatalogEntry{ReportRecord: record})
	}

	newest := query.Sort != models.SortOldest
	sort.SliceStable(entries, func(i, j int) bool {
		if newest {
			return entries[i].UploadedAt.After(entries[j].UploadedAt)
		}
		return entries[i].UploadedAt.Before(entries[j].UploadedAt)
	})

	return entries
}

func matchesType(record models.ReportRecord, typeFilter string) bool {
	return strings.Contains(strings.ToLower(string(record.ReportType)), typeFilter) ||
		strings.Contains(strings.ToLower(record.ContentType), typeFilter)
}

func matchesSearch(record models.ReportRecord, search string) bool {
	for _, field := range []string{
		record.OriginalName,
		record.Description,
		record.Title,
		record.Doctor,
		record.Tags,
	} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// CatalogState is the one authoritative in-memory copy of the catalog: the
// unfiltered record set as last loaded, the currently derived view, and the
// pre-edit snapshots backing the edit overlay. The coordinators reconcile it
// after their last network step instead of triggering a reload.
type CatalogState struct {
	records   []models.ReportRecord
	entries   []models.CatalogEntry
	query     models.CatalogQuery
	snapshots map[string]models.ReportRecord
}

func newCatalogState() *CatalogState {
	return &CatalogState{snapshots: make(map[string]models.ReportRecord)}
}

// CatalogService loads the record store, serves derived views and manages the
// edit overlay.
//
// The mutex guards the integrity of the held collections only. There is no
// concurrency token on the records themselves: an edit-save and a delete
// racing on the same entry interleave at the store exactly as they are
// issued. That window is inherent to the two-store design and is surfaced,
// not hidden.
type CatalogService struct {
	repo    catalogRecordStore
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger

	mu    sync.Mutex
	state *CatalogState
}

// NewCatalogService constructs the service with an empty state.
func NewCatalogService(repo catalogRecordStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		state:   newCatalogState(),
	}
}

// Load performs a full scan of the record store and replaces the held record
// set. Editing overlays do not survive a load. The scan goes through the
// cache when enabled; a cache failure degrades to a direct scan.
func (s *CatalogService) Load(ctx context.Context) ([]models.ReportRecord, error) {
	var records []models.ReportRecord
	if s.cache.Get(ctx, catalogScanCacheKey, &records) {
		s.replaceRecords(records)
		return records, nil
	}

	start := time.Now()
	records, err := s.repo.Scan(ctx)
	s.metrics.ObserveDBQuery("reports_scan", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCatalogLoad.Code, appErrors.ErrCatalogLoad.Status, appErrors.ErrCatalogLoad.Message)
	}

	s.cache.Set(ctx, catalogScanCacheKey, records)
	s.replaceRecords(records)
	return records, nil
}

// List loads the record set and derives the view for the given query. The
// derived view becomes the held view.
func (s *CatalogService) List(ctx context.Context, query models.CatalogQuery) ([]models.CatalogEntry, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	entries := Derive(records, query)

	s.mu.Lock()
	s.state.query = query
	s.state.entries = entries
	s.mu.Unlock()

	return cloneEntries(entries), nil
}

// BeginEdit marks one held entry as under edit and snapshots its pre-edit
// values. Only one row is intended to be under edit at a time; overlapping
// edits on distinct rows are tolerated but not coordinated.
func (s *CatalogService) BeginEdit(patientID, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.entries {
		e := &s.state.entries[i]
		if e.ReportID == reportID && e.PatientID == patientID {
			if !e.Editing {
				s.state.snapshots[reportID] = e.ReportRecord
				e.Editing = true
			}
			return nil
		}
	}
	return appErrors.ErrNotFound
}

// UpdateDraft applies a patch to the in-memory entry under edit without
// contacting the store.
func (s *CatalogService) UpdateDraft(patientID, reportID string, patch models.ReportPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.entries {
		e := &s.state.entries[i]
		if e.ReportID == reportID && e.PatientID == patientID {
			if !e.Editing {
				return appErrors.Clone(appErrors.ErrConflict, "entry is not under edit")
			}
			applyPatch(&e.ReportRecord, patch)
			return nil
		}
	}
	return appErrors.ErrNotFound
}

// CancelEdit discards the in-memory mutation and restores the entry to its
// last-loaded values. The store is never contacted.
func (s *CatalogService) CancelEdit(patientID, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.state.entries {
		e := &s.state.entries[i]
		if e.ReportID == reportID && e.PatientID == patientID {
			if snapshot, ok := s.state.snapshots[reportID]; ok {
				e.ReportRecord = snapshot
				delete(s.state.snapshots, reportID)
			}
			e.Editing = false
			return nil
		}
	}
	return appErrors.ErrNotFound
}

// Save applies the patch to the entry and writes the mutable fields to the
// record store via a partial update keyed by (reportID, patientID), then
// clears the editing flag. The held record set is patched in place so the
// next derivation reflects the save without a reload.
func (s *CatalogService) Save(ctx context.Context, patientID, reportID string, patch models.ReportPatch) (*models.ReportRecord, error) {
	start := time.Now()
	err := s.repo.UpdateFields(ctx, patientID, reportID, patch)
	s.metrics.ObserveDBQuery("reports_update", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save report")
	}

	s.cache.Invalidate(ctx, catalogScanCacheKey)

	s.mu.Lock()
	var saved *models.ReportRecord
	for i := range s.state.records {
		r := &s.state.records[i]
		if r.ReportID == reportID && r.PatientID == patientID {
			applyPatch(r, patch)
			copied := *r
			saved = &copied
			break
		}
	}
	for i := range s.state.entries {
		e := &s.state.entries[i]
		if e.ReportID == reportID && e.PatientID == patientID {
			applyPatch(&e.ReportRecord, patch)
			e.Editing = false
			break
		}
	}
	delete(s.state.snapshots, reportID)
	s.mu.Unlock()

	if saved == nil {
		record, err := s.repo.GetByKey(ctx, patientID, reportID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload saved report")
		}
		saved = record
	}
	return saved, nil
}

// Remove splices an entry out of both the unfiltered record set and the
// derived view. Used by the deletion coordinator after a successful
// two-phase delete.
func (s *CatalogService) Remove(patientID, reportID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.state.records[:0]
	for _, r := range s.state.records {
		if r.ReportID == reportID && r.PatientID == patientID {
			continue
		}
		records = append(records, r)
	}
	s.state.records = records

	entries := s.state.entries[:0]
	for _, e := range s.state.entries {
		if e.ReportID == reportID && e.PatientID == patientID {
			continue
		}
		entries = append(entries, e)
	}
	s.state.entries = entries

	delete(s.state.snapshots, reportID)
}

// Get returns the held entry for a key, falling back to a keyed read when the
// catalog has not been loaded yet.
func (s *CatalogService) Get(ctx context.Context, patientID, reportID string) (*models.ReportRecord, error) {
	s.mu.Lock()
	for _, e := range s.state.entries {
		if e.ReportID == reportID && e.PatientID == patientID {
			record := e.ReportRecord
			s.mu.Unlock()
			return &record, nil
		}
	}
	s.mu.Unlock()

	record, err := s.repo.GetByKey(ctx, patientID, reportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return record, nil
}

// Entries returns a copy of the currently derived view.
func (s *CatalogService) Entries() []models.CatalogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntries(s.state.entries)
}

// Records returns a copy of the held unfiltered record set.
func (s *CatalogService) Records() []models.ReportRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]models.ReportRecord, len(s.state.records))
	copy(records, s.state.records)
	return records
}

// InvalidateScan drops the cached scan. Called by the coordinators after any
// write so the next load observes it.
func (s *CatalogService) InvalidateScan(ctx context.Context) {
	s.cache.Invalidate(ctx, catalogScanCacheKey)
}

func (s *CatalogService) replaceRecords(records []models.ReportRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.records = records
	s.state.entries = Derive(records, s.state.query)
	s.state.snapshots = make(map[string]models.ReportRecord)
}

func applyPatch(record *models.ReportRecord, patch models.ReportPatch) {
	if patch.Title != nil {
		record.Title = *patch.Title
	}
	if patch.ReportType != nil {
		record.ReportType = *patch.ReportType
	}
	if patch.Doctor != nil {
		record.Doctor = *patch.Doctor
	}
	if patch.ReportDate != nil {
		record.ReportDate = *patch.ReportDate
	}
	if patch.Tags != nil {
		record.Tags = *patch.Tags
	}
	if patch.Description != nil {
		record.Description = *patch.Description
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
}

func cloneEntries(entries []models.CatalogEntry) []models.CatalogEntry {
	cloned := make([]models.CatalogEntry, len(entries))
	copy(cloned, entries)
	return cloned
}
