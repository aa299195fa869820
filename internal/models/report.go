package models

import "time"

// ReportType classifies an uploaded document.
type ReportType string

const (
	ReportTypeLab          ReportType = "Lab Report"
	ReportTypePrescription ReportType = "Prescription"
	ReportTypeScan         ReportType = "Scan"
	ReportTypeInvoice      ReportType = "Invoice"
	ReportTypeOther        ReportType = "Other"
)

// Valid reports whether the type is one of the known categories.
func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeLab, ReportTypePrescription, ReportTypeScan, ReportTypeInvoice, ReportTypeOther:
		return true
	}
	return false
}

// ReportStatus is the review workflow state of a report.
type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "Pending"
	ReportStatusReviewed ReportStatus = "Reviewed"
)

// Valid reports whether the status is a known workflow state.
func (s ReportStatus) Valid() bool {
	return s == ReportStatusPending || s == ReportStatusReviewed
}

// Default field values applied when an upload omits optional metadata, and
// when a scanned row predates a field.
const (
	DefaultTitle       = "Untitled Report"
	DefaultDoctor      = "Unknown"
	DefaultDescription = "No description"
)

// ReportRecord is the metadata row for one uploaded document. The pair
// (ReportID, PatientID) is the composite key for all keyed record-store
// operations. ObjectKey ties the row to exactly one object in the object
// store; the 1:1 lifetime coupling is best effort, enforced by the two-phase
// coordinators, not by a transaction.
type ReportRecord struct {
	ReportID     string       `db:"report_id" json:"reportId"`
	PatientID    string       `db:"patient_id" json:"patientId"`
	ObjectKey    string       `db:"object_key" json:"objectKey"`
	OriginalName string       `db:"original_name" json:"name"`
	ContentType  string       `db:"content_type" json:"contentType"`
	Title        string       `db:"title" json:"title"`
	ReportType   ReportType   `db:"report_type" json:"reportType"`
	Doctor       string       `db:"doctor" json:"doctor"`
	ReportDate   string       `db:"report_date" json:"reportDate"`
	Tags         string       `db:"tags" json:"tags"`
	Description  string       `db:"description" json:"description"`
	Status       ReportStatus `db:"status" json:"status"`
	UploadedAt   time.Time    `db:"uploaded_at" json:"uploadedAt"`
}

// CatalogEntry is a ReportRecord plus transient view state. The editing flag
// is never persisted and resets to false on every load.
type CatalogEntry struct {
	ReportRecord
	Editing bool `json:"editing"`
}

// SortOrder selects catalog ordering by upload time.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// CatalogQuery is the full input of a catalog derivation. Derivation is a
// pure function of the record set and this query.
type CatalogQuery struct {
	Search     string
	TypeFilter string
	Sort       SortOrder
}

// ReportPatch carries the mutable descriptive fields written by an
// edit-and-save operation. Nil fields are left untouched.
type ReportPatch struct {
	Title       *string       `json:"title,omitempty"`
	ReportType  *ReportType   `json:"reportType,omitempty"`
	Doctor      *string       `json:"doctor,omitempty"`
	ReportDate  *string       `json:"reportDate,omitempty"`
	Tags        *string       `json:"tags,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *ReportStatus `json:"status,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p ReportPatch) Empty() bool {
	return p.Title == nil && p.ReportType == nil && p.Doctor == nil &&
		p.ReportDate == nil && p.Tags == nil && p.Description == nil && p.Status == nil
}
