package store

import (
	"context"
	"time"

	"github.com/emrgen/digidoc/internal/model"
)

type Store interface {
	DocumentStore
	AuditStore
	AccessRequestStore
	PolicyStore
	SettingStore
	// Transaction runs f inside a database transaction. Everything f writes through tx commits or rolls back together.
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type DocumentStore interface {
	// CreateDocument inserts a new document version.
	CreateDocument(ctx context.Context, doc *model.Document) error
	// GetDocument retrieves a document version by ID.
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	// CompareAndSwapDocument writes doc only if the stored row still has the expected status and revision.
	CompareAndSwapDocument(ctx context.Context, doc *model.Document, expectedStatus model.Status, expectedRevision int64) error
	// ListLineage retrieves every version of a lineage, newest first.
	ListLineage(ctx context.Context, lineageID string) ([]*model.Document, error)
	// ListDocumentsByStatus retrieves documents in any of the given states.
	ListDocumentsByStatus(ctx context.Context, statuses ...model.Status) ([]*model.Document, error)
	// ListDocumentsByBatch retrieves every document of a scanning batch.
	ListDocumentsByBatch(ctx context.Context, batchID string) ([]*model.Document, error)
}

// AuditFilter narrows ListAuditEvents. Zero fields are ignored.
type AuditFilter struct {
	DocumentID  string
	LineageID   string
	PerformedBy string
	Action      model.Action
	Scope       model.Scope
	From        time.Time
	To          time.Time
	Limit       int
}

type AuditStore interface {
	// CreateAuditEvent appends an audit event.
	CreateAuditEvent(ctx context.Context, event *model.AuditEvent) error
	// ListAuditEvents retrieves audit events ordered by timestamp.
	ListAuditEvents(ctx context.Context, filter AuditFilter) ([]*model.AuditEvent, error)
}

type AccessRequestStore interface {
	CreateAccessRequest(ctx context.Context, req *model.AccessRequest) error
	GetAccessRequest(ctx context.Context, id string) (*model.AccessRequest, error)
	// UpdateAccessRequestDecision moves a Pending request to its decided state.
	UpdateAccessRequestDecision(ctx context.Context, req *model.AccessRequest) error
	// HasApprovedAccessRequest reports whether the user holds an approved request for exactly this document version.
	HasApprovedAccessRequest(ctx context.Context, userID, documentID string) (bool, error)
	// FindPendingAccessRequest returns the open request of the user for the document, if any.
	FindPendingAccessRequest(ctx context.Context, userID, documentID string) (*model.AccessRequest, error)
	ListAccessRequests(ctx context.Context, documentID string, status model.AccessRequestStatus) ([]*model.AccessRequest, error)
	ListPendingAccessRequestsByLineage(ctx context.Context, lineageID string) ([]*model.AccessRequest, error)
}

type PolicyStore interface {
	ListApprovalPolicies(ctx context.Context) ([]*model.ApprovalPolicy, error)
	CreateApprovalPolicy(ctx context.Context, policy *model.ApprovalPolicy) error
	GetRetentionPolicy(ctx context.Context, category string) (*model.RetentionPolicy, error)
	SaveRetentionPolicy(ctx context.Context, policy *model.RetentionPolicy) error
}

type SettingStore interface {
	GetSetting(ctx context.Context, key string) (*model.Setting, error)
	SaveSetting(ctx context.Context, setting *model.Setting) error
}
