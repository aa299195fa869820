package dto

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shrs-dev/report-vault/internal/models"
)

var validate = validator.New()

// UploadReportRequest contains metadata submitted alongside a file upload.
// Every field except PatientID is optional; omitted fields receive the
// standard defaults at creation time.
type UploadReportRequest struct {
	PatientID   string `form:"patientId" json:"patientId" validate:"required"`
	Title       string `form:"title" json:"title"`
	ReportType  string `form:"reportType" json:"reportType" validate:"omitempty,oneof='Lab Report' 'Prescription' 'Scan' 'Invoice' 'Other'"`
	Doctor      string `form:"doctor" json:"doctor"`
	ReportDate  string `form:"reportDate" json:"reportDate"`
	Tags        string `form:"tags" json:"tags"`
	Description string `form:"description" json:"description"`
}

// Validate checks required fields and enum values.
func (r UploadReportRequest) Validate() error {
	return validate.Struct(r)
}

// SaveReportRequest is the payload of an edit-and-save operation. Only the
// mutable descriptive fields are accepted; identity and object fields are
// immutable after upload.
type SaveReportRequest struct {
	Title       *string `json:"title"`
	ReportType  *string `json:"reportType" validate:"omitempty,oneof='Lab Report' 'Prescription' 'Scan' 'Invoice' 'Other'"`
	Doctor      *string `json:"doctor"`
	ReportDate  *string `json:"reportDate"`
	Tags        *string `json:"tags"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitempty,oneof=Pending Reviewed"`
}

// Validate checks enum constraints on the patch.
func (r SaveReportRequest) Validate() error {
	return validate.Struct(r)
}

// Patch converts the request into a model-level patch.
func (r SaveReportRequest) Patch() models.ReportPatch {
	patch := models.ReportPatch{
		Title:       r.Title,
		Doctor:      r.Doctor,
		ReportDate:  r.ReportDate,
		Tags:        r.Tags,
		Description: r.Description,
	}
	if r.ReportType != nil {
		rt := models.ReportType(*r.ReportType)
		patch.ReportType = &rt
	}
	if r.Status != nil {
		st := models.ReportStatus(*r.Status)
		patch.Status = &st
	}
	return patch
}

// CatalogQueryFromParams builds a catalog query from raw query parameters,
// normalising the sort order to its two valid values.
func CatalogQueryFromParams(search, typeFilter, sort string) models.CatalogQuery {
	order := models.SortNewest
	if strings.EqualFold(strings.TrimSpace(sort), string(models.SortOldest)) {
		order = models.SortOldest
	}
	return models.CatalogQuery{
		Search:     strings.TrimSpace(search),
		TypeFilter: strings.TrimSpace(typeFilter),
		Sort:       order,
	}
}

// ReportResponse enriches a record with its object URLs.
type ReportResponse struct {
	models.ReportRecord
	ViewURL     string `json:"viewUrl"`
	DownloadURL string `json:"downloadUrl"`
}
