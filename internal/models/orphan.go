package models

import "time"

// OrphanPhase records which half of a two-phase operation survived.
type OrphanPhase string

const (
	// OrphanPhaseRecordWrite: upload phase 2 failed, the object exists with no
	// metadata record.
	OrphanPhaseRecordWrite OrphanPhase = "RECORD_WRITE"
	// OrphanPhaseRecordDelete: delete phase 2 failed, the record remains and
	// points at a missing object.
	OrphanPhaseRecordDelete OrphanPhase = "RECORD_DELETE"
)

// OrphanEvent is the durable audit trail of a surfaced partial failure.
// Events are written asynchronously and never trigger automatic repair;
// reconciliation is an operator decision.
type OrphanEvent struct {
	ID         int64       `db:"id" json:"id"`
	ObjectKey  string      `db:"object_key" json:"objectKey"`
	ReportID   string      `db:"report_id" json:"reportId"`
	PatientID  string      `db:"patient_id" json:"patientId"`
	Phase      OrphanPhase `db:"phase" json:"phase"`
	Detail     string      `db:"detail" json:"detail"`
	DetectedAt time.Time   `db:"detected_at" json:"detectedAt"`
}
