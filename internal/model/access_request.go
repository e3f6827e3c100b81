package model

import "time"

type AccessRequestStatus string

const (
	AccessPending  AccessRequestStatus = "Pending"
	AccessApproved AccessRequestStatus = "Approved"
	AccessDenied   AccessRequestStatus = "Denied"
)

// AccessRequest asks for read access to one Restricted document version.
// It never expires; it stays Pending until someone decides it.
type AccessRequest struct {
	ID         string              `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID     string              `gorm:"not null;index" json:"userId"`
	DocumentID string              `gorm:"type:uuid;not null;index:idx_access_requests_document_status,priority:1" json:"documentId"`
	LineageID  string              `gorm:"type:uuid;index" json:"lineageId"`
	Reason     string              `json:"reason"`
	Status     AccessRequestStatus `gorm:"not null;index:idx_access_requests_document_status,priority:2" json:"status"`
	DecidedBy  string              `json:"decidedBy,omitempty"`
	DecidedAt  *time.Time          `json:"decidedAt,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
}

func (AccessRequest) TableName() string {
	return "access_requests"
}
