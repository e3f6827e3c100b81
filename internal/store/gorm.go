package store

import (
	"context"
	"errors"
	"time"

	"github.com/emrgen/digidoc/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return translate(g.db.WithContext(ctx).Create(doc).Error)
}

func (g *GormStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, translate(err)
	}
	return &doc, nil
}

// CompareAndSwapDocument saves every column of doc guarded by status and revision, then bumps the revision.
func (g *GormStore) CompareAndSwapDocument(ctx context.Context, doc *model.Document, expectedStatus model.Status, expectedRevision int64) error {
	doc.Revision = expectedRevision + 1
	doc.UpdatedAt = time.Now().UTC()

	res := g.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ? AND status = ? AND revision = ?", doc.ID, expectedStatus, expectedRevision).
		Select("*").
		Omit("id", "created_at").
		Updates(doc)
	if res.Error != nil {
		doc.Revision = expectedRevision
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		doc.Revision = expectedRevision
		return ErrStaleDocument
	}
	return nil
}

func (g *GormStore) ListLineage(ctx context.Context, lineageID string) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).
		Where("lineage_id = ?", lineageID).
		Order("version_number desc").
		Find(&docs).Error
	return docs, translate(err)
}

func (g *GormStore) ListDocumentsByStatus(ctx context.Context, statuses ...model.Status) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).
		Where("status in (?)", statuses).
		Order("created_at asc").
		Find(&docs).Error
	return docs, translate(err)
}

func (g *GormStore) ListDocumentsByBatch(ctx context.Context, batchID string) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).Where("batch_id = ?", batchID).Find(&docs).Error
	return docs, translate(err)
}

func (g *GormStore) CreateAuditEvent(ctx context.Context, event *model.AuditEvent) error {
	return g.db.WithContext(ctx).Create(event).Error
}

func (g *GormStore) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]*model.AuditEvent, error) {
	q := g.db.WithContext(ctx).Model(&model.AuditEvent{})
	if filter.DocumentID != "" {
		q = q.Where("document_id = ?", filter.DocumentID)
	}
	if filter.LineageID != "" {
		q = q.Where("lineage_id = ?", filter.LineageID)
	}
	if filter.PerformedBy != "" {
		q = q.Where("performed_by = ?", filter.PerformedBy)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	if filter.Scope != model.ScopeNone {
		q = q.Where("scope = ?", filter.Scope)
	}
	if !filter.From.IsZero() {
		q = q.Where("occurred_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("occurred_at <= ?", filter.To.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var events []*model.AuditEvent
	err := q.Order("occurred_at asc").Find(&events).Error
	return events, err
}

func (g *GormStore) CreateAccessRequest(ctx context.Context, req *model.AccessRequest) error {
	return translate(g.db.WithContext(ctx).Create(req).Error)
}

func (g *GormStore) GetAccessRequest(ctx context.Context, id string) (*model.AccessRequest, error) {
	var req model.AccessRequest
	if err := g.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (g *GormStore) UpdateAccessRequestDecision(ctx context.Context, req *model.AccessRequest) error {
	res := g.db.WithContext(ctx).
		Model(&model.AccessRequest{}).
		Where("id = ? AND status = ?", req.ID, model.AccessPending).
		Updates(map[string]interface{}{
			"status":     req.Status,
			"decided_by": req.DecidedBy,
			"decided_at": req.DecidedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleDocument
	}
	return nil
}

func (g *GormStore) HasApprovedAccessRequest(ctx context.Context, userID, documentID string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&model.AccessRequest{}).
		Where("user_id = ? AND document_id = ? AND status = ?", userID, documentID, model.AccessApproved).
		Count(&count).Error
	return count > 0, err
}

func (g *GormStore) FindPendingAccessRequest(ctx context.Context, userID, documentID string) (*model.AccessRequest, error) {
	var req model.AccessRequest
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND document_id = ? AND status = ?", userID, documentID, model.AccessPending).
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (g *GormStore) ListAccessRequests(ctx context.Context, documentID string, status model.AccessRequestStatus) ([]*model.AccessRequest, error) {
	q := g.db.WithContext(ctx).Model(&model.AccessRequest{})
	if documentID != "" {
		q = q.Where("document_id = ?", documentID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var reqs []*model.AccessRequest
	err := q.Order("created_at asc").Find(&reqs).Error
	return reqs, err
}

func (g *GormStore) ListPendingAccessRequestsByLineage(ctx context.Context, lineageID string) ([]*model.AccessRequest, error) {
	var reqs []*model.AccessRequest
	err := g.db.WithContext(ctx).
		Where("lineage_id = ? AND status = ?", lineageID, model.AccessPending).
		Find(&reqs).Error
	return reqs, err
}

func (g *GormStore) ListApprovalPolicies(ctx context.Context) ([]*model.ApprovalPolicy, error) {
	var policies []*model.ApprovalPolicy
	err := g.db.WithContext(ctx).Where("active = ?", true).Find(&policies).Error
	return policies, err
}

func (g *GormStore) CreateApprovalPolicy(ctx context.Context, policy *model.ApprovalPolicy) error {
	return g.db.WithContext(ctx).Create(policy).Error
}

func (g *GormStore) GetRetentionPolicy(ctx context.Context, category string) (*model.RetentionPolicy, error) {
	var policy model.RetentionPolicy
	if err := g.db.WithContext(ctx).Where("category = ?", category).First(&policy).Error; err != nil {
		return nil, translate(err)
	}
	return &policy, nil
}

func (g *GormStore) SaveRetentionPolicy(ctx context.Context, policy *model.RetentionPolicy) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}},
		DoUpdates: clause.AssignmentColumns([]string{"retention_years", "updated_at"}),
	}).Create(policy).Error
}

func (g *GormStore) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	var setting model.Setting
	if err := g.db.WithContext(ctx).Where(&model.Setting{Key: key}).First(&setting).Error; err != nil {
		return nil, translate(err)
	}
	return &setting, nil
}

func (g *GormStore) SaveSetting(ctx context.Context, setting *model.Setting) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(setting).Error
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}

// IsStale reports whether err came from a failed compare-and-swap or a lost version number race.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleDocument) || errors.Is(err, ErrDuplicateVersion)
}
