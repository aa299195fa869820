package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shrs-dev/report-vault/internal/models"
	appErrors "github.com/shrs-dev/report-vault/pkg/errors"
	"github.com/shrs-dev/report-vault/pkg/export"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type catalogLister interface {
	List(ctx context.Context, query models.CatalogQuery) ([]models.CatalogEntry, error)
}

// ExportResult bundles rendered bytes with serving metadata.
type ExportResult struct {
	Data     []byte
	Filename string
	MimeType string
}

// ExportService renders the derived catalog view as a downloadable document.
// The same filter/search/sort query drives the export, so what the user sees
// is what gets exported.
type ExportService struct {
	catalog catalogLister
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
}

// NewExportService constructs the service.
func NewExportService(catalog catalogLister) *ExportService {
	return &ExportService{
		catalog: catalog,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
	}
}

var exportHeaders = []string{"Patient", "Title", "Type", "Doctor", "Report Date", "Status", "File", "Uploaded At"}

// Export derives the catalog for the query and renders it in the requested
// format.
func (s *ExportService) Export(ctx context.Context, query models.CatalogQuery, format ExportFormat) (*ExportResult, error) {
	entries, err := s.catalog.List(ctx, query)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: exportHeaders,
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, e := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Patient":     e.PatientID,
			"Title":       e.Title,
			"Type":        string(e.ReportType),
			"Doctor":      e.Doctor,
			"Report Date": e.ReportDate,
			"Status":      string(e.Status),
			"File":        e.OriginalName,
			"Uploaded At": e.UploadedAt.UTC().Format(time.RFC3339),
		})
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	switch ExportFormat(strings.ToLower(string(format))) {
	case ExportFormatCSV:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			Data:     data,
			Filename: fmt.Sprintf("report_catalog_%s.csv", stamp),
			MimeType: "text/csv",
		}, nil
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, "Report Catalog")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			Data:     data,
			Filename: fmt.Sprintf("report_catalog_%s.pdf", stamp),
			MimeType: "application/pdf",
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
