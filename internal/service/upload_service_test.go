package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shrs-dev/report-vault/internal/dto"
	"github.com/shrs-dev/report-vault/internal/models"
	appErrors "github.com/shrs-dev/report-vault/pkg/errors"
)

type uploadRepoStub struct {
	records []*models.ReportRecord
	err     error
}

func (r *uploadRepoStub) Put(ctx context.Context, record *models.ReportRecord) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, record)
	return nil
}

type objectStoreStub struct {
	objects map[string][]byte
	err     error
}

func newObjectStoreStub() *objectStoreStub {
	return &objectStoreStub{objects: make(map[string][]byte)}
}

func (s *objectStoreStub) Put(key string, r io.Reader, contentType string) error {
	if s.err != nil {
		return s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *objectStoreStub) Delete(key string) error {
	if s.err != nil {
		return s.err
	}
	delete(s.objects, key)
	return nil
}

type orphanNotifierStub struct {
	events []models.OrphanEvent
}

func (o *orphanNotifierStub) Notify(event models.OrphanEvent) {
	o.events = append(o.events, event)
}

type invalidatorStub struct {
	calls int
}

func (i *invalidatorStub) InvalidateScan(ctx context.Context) {
	i.calls++
}

func newTestUploadService(repo *uploadRepoStub, store *objectStoreStub, orphans *orphanNotifierStub) *UploadService {
	return NewUploadService(repo, store, orphans, &invalidatorStub{}, NewMetricsService(), nil, UploadServiceConfig{
		MaxFileSize:  1024 * 1024,
		AllowedMIMEs: []string{"application/pdf"},
	})
}

func pdfUpload(name, body string) ReportUpload {
	return ReportUpload{
		Filename: name,
		Size:     int64(len(body)),
		MimeType: "application/pdf",
		Content:  bytes.NewReader([]byte(body)),
	}
}

func TestUploadAppliesDefaults(t *testing.T) {
	repo := &uploadRepoStub{}
	store := newObjectStoreStub()
	svc := newTestUploadService(repo, store, &orphanNotifierStub{})
	svc.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }

	var progress []int
	record, err := svc.Upload(context.Background(), dto.UploadReportRequest{PatientID: "p1"}, pdfUpload("report.pdf", "%PDF-1.4"), func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	require.Equal(t, "p1", record.PatientID)
	require.NotEmpty(t, record.ReportID)
	require.Equal(t, record.ReportID+"_report.pdf", record.ObjectKey)
	require.Equal(t, models.DefaultTitle, record.Title)
	require.Equal(t, models.ReportTypeOther, record.ReportType)
	require.Equal(t, models.DefaultDoctor, record.Doctor)
	require.Equal(t, "2026-03-15", record.ReportDate)
	require.Equal(t, "", record.Tags)
	require.Equal(t, models.DefaultDescription, record.Description)
	require.Equal(t, models.ReportStatusPending, record.Status)

	require.Equal(t, []int{0, 30, 70, 100}, progress)
	require.Contains(t, store.objects, record.ObjectKey)
	require.Len(t, repo.records, 1)
}

func TestUploadKeepsProvidedMetadata(t *testing.T) {
	repo := &uploadRepoStub{}
	svc := newTestUploadService(repo, newObjectStoreStub(), &orphanNotifierStub{})

	meta := dto.UploadReportRequest{
		PatientID:  "p1",
		Title:      "Blood Panel",
		ReportType: "Lab Report",
		Doctor:     "Dr. Osei",
		ReportDate: "2026-02-01",
		Tags:       "cardio",
	}
	record, err := svc.Upload(context.Background(), meta, pdfUpload("blood.pdf", "%PDF-1.4"), nil)
	require.NoError(t, err)
	require.Equal(t, "Blood Panel", record.Title)
	require.Equal(t, models.ReportTypeLab, record.ReportType)
	require.Equal(t, "Dr. Osei", record.Doctor)
	require.Equal(t, "2026-02-01", record.ReportDate)
	require.Equal(t, "cardio", record.Tags)
}

func TestUploadValidationBeforeAnyStore(t *testing.T) {
	repo := &uploadRepoStub{}
	store := newObjectStoreStub()
	svc := newTestUploadService(repo, store, &orphanNotifierStub{})

	cases := []struct {
		name   string
		meta   dto.UploadReportRequest
		upload ReportUpload
	}{
		{"missing patient", dto.UploadReportRequest{}, pdfUpload("a.pdf", "%PDF-1.4")},
		{"missing file", dto.UploadReportRequest{PatientID: "p1"}, ReportUpload{}},
		{"bad report type", dto.UploadReportRequest{PatientID: "p1", ReportType: "Selfie"}, pdfUpload("a.pdf", "%PDF-1.4")},
		{"oversize", dto.UploadReportRequest{PatientID: "p1"}, ReportUpload{
			Filename: "big.pdf",
			Size:     2 * 1024 * 1024,
			MimeType: "application/pdf",
			Content:  bytes.NewReader([]byte("%PDF-1.4")),
		}},
		{"disallowed mime", dto.UploadReportRequest{PatientID: "p1"}, ReportUpload{
			Filename: "a.gif",
			Size:     4,
			MimeType: "image/gif",
			Content:  bytes.NewReader([]byte("GIF8")),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tc.meta, tc.upload, nil)
			require.Error(t, err)
			require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}

	// Validation rejects before either store is touched.
	require.Empty(t, store.objects)
	require.Empty(t, repo.records)
}

func TestUploadObjectWriteFailureAborts(t *testing.T) {
	repo := &uploadRepoStub{}
	store := newObjectStoreStub()
	store.err = fmt.Errorf("bucket unavailable")
	orphans := &orphanNotifierStub{}
	svc := newTestUploadService(repo, store, orphans)

	_, err := svc.Upload(context.Background(), dto.UploadReportRequest{PatientID: "p1"}, pdfUpload("a.pdf", "%PDF-1.4"), nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrObjectWrite.Code, appErrors.FromError(err).Code)

	// Phase 1 failed, so phase 2 was never attempted and nothing persisted.
	require.Empty(t, repo.records)
	require.Empty(t, orphans.events)
}

func TestUploadRecordWriteFailureLeavesOrphan(t *testing.T) {
	repo := &uploadRepoStub{err: fmt.Errorf("table gone")}
	store := newObjectStoreStub()
	orphans := &orphanNotifierStub{}
	svc := newTestUploadService(repo, store, orphans)

	_, err := svc.Upload(context.Background(), dto.UploadReportRequest{PatientID: "p1"}, pdfUpload("a.pdf", "%PDF-1.4"), nil)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrRecordWrite.Code, appErrors.FromError(err).Code)

	// The object stays behind; it is reported, never removed.
	require.Len(t, store.objects, 1)
	require.Len(t, orphans.events, 1)
	event := orphans.events[0]
	require.Equal(t, models.OrphanPhaseRecordWrite, event.Phase)
	require.Equal(t, "p1", event.PatientID)
	require.Contains(t, store.objects, event.ObjectKey)
}

func TestUploadSanitizesFilename(t *testing.T) {
	repo := &uploadRepoStub{}
	svc := newTestUploadService(repo, newObjectStoreStub(), &orphanNotifierStub{})

	record, err := svc.Upload(context.Background(), dto.UploadReportRequest{PatientID: "p1"}, pdfUpload("../../etc/scan.pdf", "%PDF-1.4"), nil)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(record.ObjectKey, "_scan.pdf"))
	require.NotContains(t, record.ObjectKey, "/")
}

func TestUploadDetectsMimeWhenMissing(t *testing.T) {
	repo := &uploadRepoStub{}
	svc := newTestUploadService(repo, newObjectStoreStub(), &orphanNotifierStub{})

	body := "%PDF-1.4 minimal"
	record, err := svc.Upload(context.Background(), dto.UploadReportRequest{PatientID: "p1"}, ReportUpload{
		Filename: "sniffed.pdf",
		Size:     int64(len(body)),
		Content:  bytes.NewReader([]byte(body)),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", record.ContentType)
}
