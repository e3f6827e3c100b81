package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/digidoc/internal/access"
	"github.com/emrgen/digidoc/internal/audit"
	"github.com/emrgen/digidoc/internal/compress"
	"github.com/emrgen/digidoc/internal/disposal"
	"github.com/emrgen/digidoc/internal/metadata"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/queue"
	"github.com/emrgen/digidoc/internal/store"
	"github.com/emrgen/digidoc/internal/version"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// NewDocumentService creates a new DocumentService.
func NewDocumentService(compress compress.Compress, store store.Store, publisher queue.Publisher, opts ...Option) *DocumentService {
	service := &DocumentService{
		compress:              compress,
		store:                 store,
		publisher:             publisher,
		versions:              version.NewManager(),
		validators:            metadata.DefaultRegistry(),
		now:                   time.Now,
		defaultRetentionYears: disposal.DefaultRetentionYears,
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.publisher == nil {
		service.publisher = queue.NewNop()
	}
	service.recorder = audit.NewRecorder().WithClock(service.now)

	return service
}

// DocumentService drives documents through their lifecycle. Every mutation runs in one
// store transaction together with its audit events.
type DocumentService struct {
	compress              compress.Compress
	store                 store.Store
	publisher             queue.Publisher
	versions              *version.Manager
	recorder              *audit.Recorder
	validators            *metadata.Registry
	now                   func() time.Time
	allowSelfApproval     bool
	defaultRetentionYears int
}

// IngestRequest carries the content and metadata produced by an upstream ingestion step.
type IngestRequest struct {
	// LineageID appends the document to an existing lineage. Empty starts a new one.
	LineageID            string                `json:"lineageId,omitempty"`
	Content              string                `json:"content"`
	Metadata             datatypes.JSON        `json:"metadata,omitempty"`
	Category             string                `json:"category,omitempty"`
	Department           string                `json:"department,omitempty"`
	ConfidentialityLevel model.Confidentiality `json:"confidentialityLevel,omitempty"`
	OwnerID              string                `json:"ownerId,omitempty"`
	ContainerID          *string               `json:"containerId,omitempty"`
	BatchID              *string               `json:"batchId,omitempty"`
	PageCount            int                   `json:"pageCount,omitempty"`
}

// txn is the unit of work handed to mutate callbacks.
type txn struct {
	tx     store.Store
	svc    *DocumentService
	events []*model.AuditEvent
}

func (t *txn) record(ctx context.Context, e audit.Entry) error {
	event, err := t.svc.recorder.Record(ctx, t.tx, e)
	if err != nil {
		return err
	}
	t.events = append(t.events, event)
	return nil
}

// mutate runs f in a transaction and publishes the recorded events after commit.
// A lost compare-and-swap is retried once against fresh state.
func (d *DocumentService) mutate(ctx context.Context, f func(t *txn) error) error {
	var t *txn
	attempt := func() error {
		return d.store.Transaction(ctx, func(tx store.Store) error {
			t = &txn{tx: tx, svc: d}
			return f(t)
		})
	}

	err := attempt()
	if store.IsStale(err) {
		logrus.Debugf("retrying after concurrent modification: %v", err)
		err = attempt()
	}
	if store.IsStale(err) {
		return fmt.Errorf("%w: %v", model.ErrConcurrentModification, err)
	}
	if err != nil {
		return err
	}

	d.publish(ctx, t.events)
	return nil
}

func (d *DocumentService) publish(ctx context.Context, events []*model.AuditEvent) {
	if len(events) == 0 {
		return
	}
	if err := d.publisher.Publish(ctx, events...); err != nil {
		logrus.Errorf("failed to publish %d audit events: %v", len(events), err)
	}
}

// IngestDocument stores a new document in Received state, either as version 1 of a new
// lineage or as the next version of an existing one.
func (d *DocumentService) IngestDocument(ctx context.Context, req *IngestRequest, principal model.Principal) (*model.Document, error) {
	if !principal.Authenticated() {
		return nil, fmt.Errorf("%w: ingest needs an authenticated principal", model.ErrPermissionDenied)
	}
	if req.ConfidentialityLevel != "" && !req.ConfidentialityLevel.Valid() {
		return nil, fmt.Errorf("%w: unknown confidentiality level %q", model.ErrGuardFailed, req.ConfidentialityLevel)
	}
	if err := d.validators.Validate(req.Category, req.Metadata); err != nil {
		return nil, err
	}
	if req.PageCount < 0 {
		return nil, fmt.Errorf("%w: page count must not be negative", model.ErrGuardFailed)
	}

	data, codec, err := d.encodeContent(req.Content)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		ID:                   uuid.New().String(),
		Status:               model.StatusReceived,
		ApprovalStatus:       model.ApprovalNotRequired,
		ConfidentialityLevel: req.ConfidentialityLevel,
		OwnerID:              req.OwnerID,
		UploaderID:           principal.ID,
		ContainerID:          req.ContainerID,
		BatchID:              req.BatchID,
		PageCount:            req.PageCount,
		Category:             req.Category,
		Department:           req.Department,
		Metadata:             req.Metadata,
		ContentData:          data,
		Compression:          codec,
	}

	err = d.mutate(ctx, func(t *txn) error {
		created := doc.Clone()

		if req.LineageID == "" {
			created.LineageID = created.ID
			created.VersionNumber = 1
			if created.ConfidentialityLevel == "" {
				created.ConfidentialityLevel = model.ConfidentialityInternal
			}
			if created.OwnerID == "" {
				created.OwnerID = principal.ID
			}
			if err := t.tx.CreateDocument(ctx, created); err != nil {
				return err
			}
		} else {
			hold, err := d.legalHold(ctx, t.tx)
			if err != nil {
				return err
			}
			res, err := d.versions.AppendVersion(ctx, t.tx, req.LineageID, created, hold)
			if err != nil {
				return err
			}
			if res.Superseded != nil {
				e := audit.StatusChange(res.Superseded, model.ActionSupersede, principal.ID, model.StatusPublished, model.StatusSuperseded)
				e.Details = fmt.Sprintf("superseded by version %d", created.VersionNumber)
				if err := t.record(ctx, e); err != nil {
					return err
				}
			}
		}

		e := audit.StatusChange(created, model.ActionIngest, principal.ID, "", created.Status)
		e.OldValue = nil
		e.Details = fmt.Sprintf("version %d", created.VersionNumber)
		if err := t.record(ctx, e); err != nil {
			return err
		}

		doc = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("ingested document %s as version %d of lineage %s", doc.ID, doc.VersionNumber, doc.LineageID)
	doc.Content = req.Content

	return doc, nil
}

// GetDocument returns the document with its content after passing the confidentiality gate.
// The read is audited: sensitive levels through the RESTRICTED evaluation event, others as a view.
func (d *DocumentService) GetDocument(ctx context.Context, id string, principal model.Principal) (*model.Document, error) {
	var (
		doc      *model.Document
		decision access.Decision
	)
	err := d.mutate(ctx, func(t *txn) error {
		var err error
		doc, err = t.tx.GetDocument(ctx, id)
		if err != nil {
			return err
		}

		decision, err = d.evaluate(ctx, t, doc, principal)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return nil
		}

		if !doc.ConfidentialityLevel.Sensitive() {
			return t.record(ctx, audit.Entry{
				DocumentID:  doc.ID,
				LineageID:   doc.LineageID,
				Action:      model.ActionView,
				PerformedBy: principal.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// the denial itself is already committed to the audit trail
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", model.ErrPermissionDenied, decision.Reason)
	}

	if err := d.decodeContent(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// VersionView is one version of a lineage with the caller's access decision for it.
type VersionView struct {
	Document *model.Document `json:"document"`
	Access   access.Decision `json:"access"`
}

// ListVersions returns every version of a lineage, newest first, without content. Each
// version passes the confidentiality gate; denied versions are redacted.
func (d *DocumentService) ListVersions(ctx context.Context, lineageID string, principal model.Principal) ([]*VersionView, error) {
	if !principal.Authenticated() {
		return nil, model.ErrPermissionDenied
	}

	var views []*VersionView
	err := d.mutate(ctx, func(t *txn) error {
		chain, err := d.versions.ListVersions(ctx, t.tx, lineageID)
		if err != nil {
			return err
		}

		views = make([]*VersionView, 0, len(chain))
		for _, doc := range chain {
			view, err := d.view(ctx, t, doc, principal)
			if err != nil {
				return err
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return views, nil
}

// ResolveCurrent returns the current version of a lineage without its content, gated the
// same way as ListVersions.
func (d *DocumentService) ResolveCurrent(ctx context.Context, lineageID string, principal model.Principal) (*VersionView, error) {
	if !principal.Authenticated() {
		return nil, model.ErrPermissionDenied
	}

	var view *VersionView
	err := d.mutate(ctx, func(t *txn) error {
		doc, err := d.versions.ResolveCurrent(ctx, t.tx, lineageID)
		if err != nil {
			return err
		}
		view, err = d.view(ctx, t, doc, principal)
		return err
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

func (d *DocumentService) view(ctx context.Context, t *txn, doc *model.Document, principal model.Principal) (*VersionView, error) {
	decision, err := d.evaluate(ctx, t, doc, principal)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		doc = redact(doc)
	}
	doc.ContentData = nil
	return &VersionView{Document: doc, Access: decision}, nil
}

// redact keeps only what identifies a version within its lineage.
func redact(doc *model.Document) *model.Document {
	return &model.Document{
		ID:                   doc.ID,
		LineageID:            doc.LineageID,
		VersionNumber:        doc.VersionNumber,
		Status:               doc.Status,
		ConfidentialityLevel: doc.ConfidentialityLevel,
	}
}

type BatchReport struct {
	BatchID       string   `json:"batchId"`
	ExpectedPages int      `json:"expectedPages"`
	ScannedPages  int      `json:"scannedPages"`
	Documents     []string `json:"documents"`
	Complete      bool     `json:"complete"`
}

// BatchCompleteness compares the pages scanned for a batch with what the batch expects.
// Superseded and purged versions do not count.
func (d *DocumentService) BatchCompleteness(ctx context.Context, batchID string, expectedPages int) (*BatchReport, error) {
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id required", model.ErrGuardFailed)
	}
	docs, err := d.store.ListDocumentsByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{BatchID: batchID, ExpectedPages: expectedPages, Documents: []string{}}
	for _, doc := range docs {
		if doc.Status == model.StatusSuperseded || doc.Status == model.StatusPurged {
			continue
		}
		report.ScannedPages += doc.PageCount
		report.Documents = append(report.Documents, doc.ID)
	}
	report.Complete = report.ScannedPages >= expectedPages

	return report, nil
}

func (d *DocumentService) encodeContent(content string) ([]byte, string, error) {
	if content == "" {
		return nil, "", nil
	}
	data, err := d.compress.Encode([]byte(content))
	if err != nil {
		return nil, "", err
	}
	return data, d.compress.Name(), nil
}

func (d *DocumentService) decodeContent(doc *model.Document) error {
	if len(doc.ContentData) == 0 {
		doc.Content = ""
		return nil
	}
	codec, err := compress.New(doc.Compression)
	if err != nil {
		return err
	}
	data, err := codec.Decode(doc.ContentData)
	if err != nil {
		return fmt.Errorf("document %s content is corrupted: %w", doc.ID, err)
	}
	doc.Content = string(data)
	return nil
}

func (d *DocumentService) legalHold(ctx context.Context, s store.SettingStore) (bool, error) {
	setting, err := s.GetSetting(ctx, model.SettingLegalHold)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return setting.Value == "true", nil
}
