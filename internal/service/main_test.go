package service

import (
	"context"
	"testing"

	"github.com/emrgen/digidoc/internal/compress"
	"github.com/emrgen/digidoc/internal/lifecycle"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/queue"
	"github.com/emrgen/digidoc/internal/store"
	"github.com/emrgen/digidoc/internal/tester"
	"github.com/stretchr/testify/require"
)

var (
	admin   = model.Principal{ID: "admin", Role: model.RoleAdmin}
	manager = model.Principal{ID: "manager", Role: model.RoleManager}
	u1      = model.Principal{ID: "u1", Role: model.RoleOperator}
	u2      = model.Principal{ID: "u2", Role: model.RoleViewer}
)

func newTestService(t *testing.T, opts ...Option) (*DocumentService, *store.GormStore) {
	t.Helper()
	s := store.NewGormStore(tester.NewTestDB(t))
	return NewDocumentService(compress.NewGZip(), s, queue.NewNop(), opts...), s
}

// ingest stores a document owned and uploaded by u1.
func ingest(t *testing.T, svc *DocumentService, level model.Confidentiality, category string) *model.Document {
	t.Helper()
	doc, err := svc.IngestDocument(context.Background(), &IngestRequest{
		Content:              "scanned text of " + category,
		Metadata:             []byte(`{"source":"scanner-3"}`),
		Category:             category,
		ConfidentialityLevel: level,
	}, u1)
	require.NoError(t, err)
	return doc
}

// published ingests a document and drives it straight to Published.
func published(t *testing.T, svc *DocumentService, level model.Confidentiality, category string) *model.Document {
	t.Helper()
	doc := ingest(t, svc, level, category)
	ctx := context.Background()

	_, err := svc.ApplyTransition(ctx, doc.ID, model.EventClassify, lifecycle.Payload{}, u1)
	require.NoError(t, err)
	doc, err = svc.ApplyTransition(ctx, doc.ID, model.EventAutoPublish, lifecycle.Payload{}, u1)
	require.NoError(t, err)
	require.Equal(t, model.StatusPublished, doc.Status)

	return doc
}

func auditOf(t *testing.T, s store.Store, documentID string) []*model.AuditEvent {
	t.Helper()
	events, err := s.ListAuditEvents(context.Background(), store.AuditFilter{DocumentID: documentID})
	require.NoError(t, err)
	return events
}

func restrictedEvents(t *testing.T, s store.Store, documentID string) []*model.AuditEvent {
	t.Helper()
	events, err := s.ListAuditEvents(context.Background(), store.AuditFilter{DocumentID: documentID, Scope: model.ScopeRestricted})
	require.NoError(t, err)
	return events
}

func documentsOf(views []*VersionView) []*model.Document {
	docs := make([]*model.Document, len(views))
	for i, v := range views {
		docs[i] = v.Document
	}
	return docs
}
