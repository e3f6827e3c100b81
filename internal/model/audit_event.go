package model

import (
	"time"

	"gorm.io/gorm"
)

// Action is the verb recorded on an audit event.
type Action string

const (
	ActionIngest              Action = "ingest"
	ActionStartProcessing     Action = "start_processing"
	ActionClassify            Action = "classify"
	ActionSubmitForApproval   Action = "submit_for_approval"
	ActionAutoPublish         Action = "auto_publish"
	ActionApprove             Action = "approve"
	ActionPublish             Action = "publish"
	ActionReject              Action = "reject"
	ActionRequestChanges      Action = "request_changes"
	ActionReclassifyVersion   Action = "reclassify_version"
	ActionReupload            Action = "reupload"
	ActionSoftDelete          Action = "soft_delete"
	ActionRestore             Action = "restore"
	ActionPurge               Action = "purge"
	ActionMarkPendingDeletion Action = "mark_pending_deletion"
	ActionVersionCreated      Action = "version_created"
	ActionSupersede           Action = "supersede"
	ActionReclassify          Action = "reclassify"
	ActionView                Action = "view"
	ActionAccessEvaluated     Action = "access_evaluated"
	ActionAccessRequested     Action = "access_requested"
	ActionAccessDecided       Action = "access_decided"
	ActionAccessRequestClosed Action = "access_request_closed"
	ActionLegalHold           Action = "legal_hold"
)

// Scope tags an audit event for compliance reporting.
type Scope string

const (
	ScopeNone       Scope = ""
	ScopeRestricted Scope = "RESTRICTED"
	ScopeGovernance Scope = "GOVERNANCE"
)

// AuditEvent is an append-only record of something that happened to a document, a lineage or the system.
type AuditEvent struct {
	ID          string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Timestamp   time.Time `gorm:"column:occurred_at;not null;index" json:"timestamp"`
	DocumentID  string    `gorm:"index" json:"documentId,omitempty"`
	LineageID   string    `gorm:"index" json:"lineageId,omitempty"`
	Action      Action    `gorm:"not null;index" json:"action"`
	PerformedBy string    `gorm:"index" json:"performedBy"`
	Details     string    `json:"details,omitempty"`
	OldValue    *string   `json:"oldValue,omitempty"`
	NewValue    *string   `json:"newValue,omitempty"`
	Scope       Scope     `gorm:"index" json:"scope,omitempty"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

// BeforeUpdate keeps written events immutable.
func (e *AuditEvent) BeforeUpdate(tx *gorm.DB) error {
	return ErrAuditImmutable
}

// BeforeDelete keeps written events immutable.
func (e *AuditEvent) BeforeDelete(tx *gorm.DB) error {
	return ErrAuditImmutable
}
