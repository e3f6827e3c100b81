package model

import (
	"time"

	"gorm.io/datatypes"
)

// Document is one version of a digitized physical record.
// All versions of the same logical record share a LineageID; the first version's ID equals its LineageID.
type Document struct {
	ID                   string          `gorm:"primaryKey;type:uuid;not null" json:"id"`
	LineageID            string          `gorm:"type:uuid;not null;uniqueIndex:idx_documents_lineage_version,priority:1" json:"lineageId"`
	VersionNumber        int64           `gorm:"not null;uniqueIndex:idx_documents_lineage_version,priority:2" json:"versionNumber"`
	SupersedesID         *string         `gorm:"type:uuid" json:"supersedesId,omitempty"`
	Status               Status          `gorm:"not null;index" json:"status"`
	PriorStatus          Status          `json:"priorStatus,omitempty"` // status before entering the recycle bin
	ApprovalStatus       ApprovalStatus  `gorm:"not null" json:"approvalStatus"`
	ConfidentialityLevel Confidentiality `gorm:"not null" json:"confidentialityLevel"`
	OwnerID              string          `gorm:"index" json:"ownerId"`
	UploaderID           string          `json:"uploaderId"`
	ContainerID          *string         `json:"containerId,omitempty"`
	BatchID              *string         `gorm:"index" json:"batchId,omitempty"`
	PageCount            int             `json:"pageCount"`
	Category             string          `json:"category"`
	Department           string          `json:"department,omitempty"`
	Metadata             datatypes.JSON  `gorm:"type:text" json:"metadata,omitempty"`
	ContentData          []byte          `gorm:"column:content" json:"-"`
	Content              string          `gorm:"-" json:"content"`
	Compression          string          `json:"-"` // codec used for ContentData
	Revision             int64           `gorm:"not null;default:0" json:"revision"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

func (Document) TableName() string {
	return "documents"
}

// Clone returns a shallow copy that can be mutated without touching the original.
func (d *Document) Clone() *Document {
	c := *d
	return &c
}

// Owns reports whether the principal is the owner or the uploader of the document.
func (d *Document) Owns(p Principal) bool {
	if !p.Authenticated() {
		return false
	}
	return p.ID == d.OwnerID || p.ID == d.UploaderID
}
