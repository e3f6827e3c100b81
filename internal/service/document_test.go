package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/emrgen/digidoc/internal/compress"
	"github.com/emrgen/digidoc/internal/lifecycle"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/queue"
	"github.com/emrgen/digidoc/internal/store"
	"github.com/emrgen/digidoc/internal/tester"
	"github.com/emrgen/digidoc/internal/version"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentService_IngestDocument(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	doc := ingest(t, svc, "", "Memo")
	assert.Equal(t, doc.ID, doc.LineageID)
	assert.Equal(t, int64(1), doc.VersionNumber)
	assert.Equal(t, model.StatusReceived, doc.Status)
	assert.Equal(t, model.ConfidentialityInternal, doc.ConfidentialityLevel)
	assert.Equal(t, "u1", doc.OwnerID)

	events := auditOf(t, s, doc.ID)
	require.Len(t, events, 1)
	assert.Equal(t, model.ActionIngest, events[0].Action)
	assert.Equal(t, "Received", *events[0].NewValue)

	got, err := svc.GetDocument(ctx, doc.ID, u2)
	require.NoError(t, err)
	assert.Equal(t, "scanned text of Memo", got.Content)
	assert.Equal(t, `{"source":"scanner-3"}`, string(got.Metadata))
	assert.Equal(t, compress.GZipName, got.Compression)

	// plain reads leave a view event
	events = auditOf(t, s, doc.ID)
	require.Len(t, events, 2)
	assert.Equal(t, model.ActionView, events[1].Action)

	_, err = svc.IngestDocument(ctx, &IngestRequest{Content: "x"}, model.Principal{})
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	_, err = svc.IngestDocument(ctx, &IngestRequest{Content: "x", ConfidentialityLevel: "Secret"}, u1)
	assert.ErrorIs(t, err, model.ErrGuardFailed)

	_, err = svc.IngestDocument(ctx, &IngestRequest{Content: "x", LineageID: uuid.New().String()}, u1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDocumentService_IngestIntoLineage(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	v1 := published(t, svc, model.ConfidentialityConfidential, "Invoice")

	v2, err := svc.IngestDocument(ctx, &IngestRequest{LineageID: v1.LineageID, Content: "second scan", Metadata: []byte(`{"amount":5}`)}, u1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v2.VersionNumber)
	assert.Equal(t, model.ConfidentialityConfidential, v2.ConfidentialityLevel)
	assert.Equal(t, "Invoice", v2.Category)
	assert.JSONEq(t, `{"amount":5,"source":"scanner-3"}`, string(v2.Metadata))

	old, err := s.GetDocument(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuperseded, old.Status)

	events := auditOf(t, s, v1.ID)
	assert.Equal(t, model.ActionSupersede, events[len(events)-1].Action)

	cur, err := svc.ResolveCurrent(ctx, v1.LineageID, u1)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, cur.Document.ID)
	assert.True(t, cur.Access.Allowed)
}

func TestDocumentService_ApprovalFlow(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SeedPolicies(ctx, nil, []model.ApprovalPolicy{{MatchType: model.MatchCategory, MatchValue: "Contract", Active: true}}))

	doc := ingest(t, svc, model.ConfidentialityInternal, "")

	steps := []struct {
		event     model.Event
		payload   lifecycle.Payload
		principal model.Principal
		status    model.Status
	}{
		{model.EventStartProcessing, lifecycle.Payload{}, u1, model.StatusProcessing},
		{model.EventClassify, lifecycle.Payload{Category: "Contract", Department: "Legal"}, u1, model.StatusClassified},
		{model.EventSubmitForApproval, lifecycle.Payload{}, u1, model.StatusPendingApproval},
		{model.EventRequestChanges, lifecycle.Payload{Comments: "page 3 is cut"}, manager, model.StatusChangesRequested},
	}
	for _, step := range steps {
		got, err := svc.ApplyTransition(ctx, doc.ID, step.event, step.payload, step.principal)
		require.NoError(t, err, step.event)
		assert.Equal(t, step.status, got.Status)
	}

	_, err := svc.ApplyTransition(ctx, doc.ID, model.EventAutoPublish, lifecycle.Payload{}, u1)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	// one event per successful transition, carrying the status diff
	events := auditOf(t, s, doc.ID)
	require.Len(t, events, 5)
	for i, step := range steps {
		e := events[i+1]
		assert.Equal(t, string(step.status), *e.NewValue)
	}
	assert.Equal(t, "Received", *events[1].OldValue)

	v2, err := svc.ApplyTransition(ctx, doc.ID, model.EventReclassify, lifecycle.Payload{Reason: "fixed"}, u1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClassified, v2.Status)
	assert.Equal(t, int64(2), v2.VersionNumber)
	assert.Equal(t, "Contract", v2.Category)

	_, err = svc.ApplyTransition(ctx, v2.ID, model.EventAutoPublish, lifecycle.Payload{}, u1)
	assert.ErrorIs(t, err, model.ErrGuardFailed)

	_, err = svc.ApplyTransition(ctx, v2.ID, model.EventSubmitForApproval, lifecycle.Payload{}, u1)
	require.NoError(t, err)

	_, err = svc.ApplyTransition(ctx, v2.ID, model.EventApprove, lifecycle.Payload{}, u1)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	got, err := svc.ApplyTransition(ctx, v2.ID, model.EventApprove, lifecycle.Payload{}, manager)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, got.Status)
	assert.Equal(t, model.ApprovalApproved, got.ApprovalStatus)

	versions, err := svc.ListVersions(ctx, doc.LineageID, u1)
	require.NoError(t, err)
	assert.NoError(t, version.Validate(documentsOf(versions)))
}

func TestDocumentService_SelfApproval(t *testing.T) {
	ctx := context.Background()
	uploader := model.Principal{ID: "u1", Role: model.RoleManager}

	for _, allow := range []bool{false, true} {
		svc, _ := newTestService(t, WithSelfApproval(allow))
		require.NoError(t, svc.SeedPolicies(ctx, nil, []model.ApprovalPolicy{{MatchType: model.MatchConfidentiality, MatchValue: "Restricted", Active: true}}))

		doc := ingest(t, svc, model.ConfidentialityRestricted, "Memo")
		_, err := svc.ApplyTransition(ctx, doc.ID, model.EventClassify, lifecycle.Payload{}, u1)
		require.NoError(t, err)
		_, err = svc.ApplyTransition(ctx, doc.ID, model.EventSubmitForApproval, lifecycle.Payload{}, u1)
		require.NoError(t, err)

		_, err = svc.ApplyTransition(ctx, doc.ID, model.EventApprove, lifecycle.Payload{HoldPublication: true}, uploader)
		if allow {
			require.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, model.ErrGuardFailed)
		}
	}
}

func TestDocumentService_ClassifyValidatesMetadata(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	doc := ingest(t, svc, model.ConfidentialityInternal, "")
	_, err := svc.ApplyTransition(ctx, doc.ID, model.EventClassify, lifecycle.Payload{Category: "Invoice", Metadata: []byte(`{"due_date":"tomorrow"}`)}, u1)
	assert.ErrorIs(t, err, model.ErrGuardFailed)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, model.EventClassify, terr.Event)

	_, err = svc.ApplyTransition(ctx, doc.ID, model.EventClassify, lifecycle.Payload{}, u1)
	assert.ErrorIs(t, err, model.ErrGuardFailed)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReceived, got.Status)

	got, err = svc.ApplyTransition(ctx, doc.ID, model.EventClassify, lifecycle.Payload{Category: "Invoice", Metadata: []byte(`{"due_date":"2026-11-30","amount":"310.00"}`)}, u1)
	require.NoError(t, err)
	assert.Equal(t, `{"due_date":"2026-11-30","amount":"310.00"}`, string(got.Metadata))
}

func TestDocumentService_ReuploadScenario(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	v1 := published(t, svc, model.ConfidentialityInternal, "Memo")

	content := "second scan"
	v2, err := svc.ApplyTransition(ctx, v1.ID, model.EventReupload, lifecycle.Payload{Content: &content}, u1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, v2.Status)

	content = "third scan"
	v3, err := svc.ApplyTransition(ctx, v2.ID, model.EventReupload, lifecycle.Payload{Content: &content}, u1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v3.VersionNumber)

	views, err := svc.ListVersions(ctx, v1.LineageID, u1)
	require.NoError(t, err)
	versions := documentsOf(views)
	require.Len(t, versions, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{versions[0].VersionNumber, versions[1].VersionNumber, versions[2].VersionNumber})
	assert.Equal(t, model.StatusPublished, versions[0].Status)
	assert.Equal(t, model.StatusSuperseded, versions[1].Status)
	assert.Equal(t, model.StatusSuperseded, versions[2].Status)
	assert.NoError(t, version.Validate(versions))

	got, err := svc.GetDocument(ctx, v3.ID, u2)
	require.NoError(t, err)
	assert.Equal(t, "third scan", got.Content)

	// the target gets exactly one event for the transition, the new version its own
	events := auditOf(t, s, v2.ID)
	last := events[len(events)-1]
	assert.Equal(t, model.ActionReupload, last.Action)
	assert.Equal(t, "Published", *last.OldValue)
	assert.Equal(t, "Superseded", *last.NewValue)

	events = auditOf(t, s, v3.ID)
	assert.Equal(t, model.ActionVersionCreated, events[0].Action)

	_, err = svc.ApplyTransition(ctx, v1.ID, model.EventReupload, lifecycle.Payload{Content: &content}, u1)
	assert.ErrorIs(t, err, model.ErrConcurrentModification)
}

func TestDocumentService_LegalHoldScenario(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	doc := published(t, svc, model.ConfidentialityInternal, "Memo")

	assert.ErrorIs(t, svc.SetLegalHold(ctx, true, u2), model.ErrPermissionDenied)
	require.NoError(t, svc.SetLegalHold(ctx, true, admin))

	_, err := svc.ApplyTransition(ctx, doc.ID, model.EventSoftDelete, lifecycle.Payload{}, u1)
	assert.ErrorIs(t, err, model.ErrLegalHoldBlock)

	content := "new"
	_, err = svc.ApplyTransition(ctx, doc.ID, model.EventReupload, lifecycle.Payload{Content: &content}, u1)
	assert.ErrorIs(t, err, model.ErrImmutableLineage)

	require.NoError(t, svc.SetLegalHold(ctx, false, admin))

	deleted, err := svc.ApplyTransition(ctx, doc.ID, model.EventSoftDelete, lifecycle.Payload{Reason: "duplicate"}, u1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSoftDeleted, deleted.Status)

	restored, err := svc.ApplyTransition(ctx, doc.ID, model.EventRestore, lifecycle.Payload{}, u1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, restored.Status)

	_, err = svc.ApplyTransition(ctx, doc.ID, model.EventSoftDelete, lifecycle.Payload{}, u1)
	require.NoError(t, err)
	_, err = svc.ApplyTransition(ctx, doc.ID, model.EventPurge, lifecycle.Payload{}, u1)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	purged, err := svc.ApplyTransition(ctx, doc.ID, model.EventPurge, lifecycle.Payload{}, admin)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPurged, purged.Status)

	_, err = svc.ApplyTransition(ctx, doc.ID, model.EventRestore, lifecycle.Payload{}, admin)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ContentData)
	assert.Empty(t, got.Metadata)

	_, err = svc.Reclassify(ctx, doc.ID, ReclassifyRequest{Category: "Invoice"}, admin)
	assert.ErrorIs(t, err, model.ErrImmutableLineage)

	holds, err := s.ListAuditEvents(ctx, store.AuditFilter{Action: model.ActionLegalHold, Scope: model.ScopeGovernance})
	require.NoError(t, err)
	require.Len(t, holds, 2)
	assert.Equal(t, "true", *holds[0].NewValue)
	assert.Equal(t, "false", *holds[1].NewValue)
}

func TestDocumentService_BatchCompleteness(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	batch := "batch-7"

	for _, pages := range []int{3, 4} {
		_, err := svc.IngestDocument(ctx, &IngestRequest{Content: "p", BatchID: &batch, PageCount: pages}, u1)
		require.NoError(t, err)
	}

	report, err := svc.BatchCompleteness(ctx, batch, 10)
	require.NoError(t, err)
	assert.Equal(t, 7, report.ScannedPages)
	assert.Len(t, report.Documents, 2)
	assert.False(t, report.Complete)

	_, err = svc.IngestDocument(ctx, &IngestRequest{Content: "p", BatchID: &batch, PageCount: 3}, u1)
	require.NoError(t, err)

	report, err = svc.BatchCompleteness(ctx, batch, 10)
	require.NoError(t, err)
	assert.True(t, report.Complete)

	_, err = svc.BatchCompleteness(ctx, "", 1)
	assert.ErrorIs(t, err, model.ErrGuardFailed)
}

func TestDocumentService_PublishesCommittedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	publisher, err := queue.NewRedisPublisher(queue.RedisConfig{Addr: mr.Addr(), Stream: "audit"})
	require.NoError(t, err)
	defer publisher.Close()

	s := store.NewGormStore(tester.NewTestDB(t))
	svc := NewDocumentService(compress.NewLZ4(), s, publisher)
	ctx := context.Background()

	doc := ingest(t, svc, model.ConfidentialityInternal, "Memo")
	_, err = svc.ApplyTransition(ctx, doc.ID, model.EventStartProcessing, lifecycle.Payload{}, u1)
	require.NoError(t, err)

	// refused transitions publish nothing
	_, err = svc.ApplyTransition(ctx, doc.ID, model.EventPublish, lifecycle.Payload{}, u1)
	require.Error(t, err)

	entries, err := mr.Stream("audit")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// a broken feed never fails the operation
	mr.Close()
	_, err = svc.ApplyTransition(ctx, doc.ID, model.EventClassify, lifecycle.Payload{}, u1)
	assert.NoError(t, err)
}
