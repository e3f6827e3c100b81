package version

import (
	"context"
	"testing"

	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/store"
	"github.com/emrgen/digidoc/internal/tester"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func root(status model.Status) *model.Document {
	id := uuid.New().String()
	return &model.Document{
		ID:                   id,
		LineageID:            id,
		VersionNumber:        1,
		Status:               status,
		ApprovalStatus:       model.ApprovalNotRequired,
		ConfidentialityLevel: model.ConfidentialityConfidential,
		OwnerID:              "u1",
		UploaderID:           "u1",
		Category:             "Invoice",
		Metadata:             []byte(`{"amount":10,"vendor":"acme"}`),
	}
}

func TestAppendVersion(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.NewTestDB(t))
	m := NewManager()

	v1 := root(model.StatusPublished)
	require.NoError(t, s.CreateDocument(ctx, v1))

	res, err := m.AppendVersion(ctx, s, v1.LineageID, &model.Document{
		Status:     model.StatusReceived,
		UploaderID: "u3",
		Metadata:   []byte(`{"amount":12}`),
	}, false)
	require.NoError(t, err)

	v2 := res.Created
	assert.Equal(t, int64(2), v2.VersionNumber)
	assert.Equal(t, v1.LineageID, v2.LineageID)
	assert.Equal(t, v1.ID, *v2.SupersedesID)
	assert.Equal(t, "Invoice", v2.Category)
	assert.Equal(t, "u1", v2.OwnerID)
	assert.Equal(t, model.ConfidentialityConfidential, v2.ConfidentialityLevel)
	assert.JSONEq(t, `{"amount":12,"vendor":"acme"}`, string(v2.Metadata))

	require.NotNil(t, res.Superseded)
	got, err := s.GetDocument(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuperseded, got.Status)

	chain, err := m.ListVersions(ctx, s, v1.LineageID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.NoError(t, Validate(chain))

	cur, err := m.ResolveCurrent(ctx, s, v1.LineageID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, cur.ID)
}

func TestAppendVersion_KeepsUnpublishedHead(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.NewTestDB(t))
	m := NewManager()

	v1 := root(model.StatusClassified)
	require.NoError(t, s.CreateDocument(ctx, v1))

	res, err := m.AppendVersion(ctx, s, v1.LineageID, &model.Document{Status: model.StatusReceived}, false)
	require.NoError(t, err)
	assert.Nil(t, res.Superseded)
	// unchanged metadata keeps its original bytes
	assert.Equal(t, `{"amount":10,"vendor":"acme"}`, string(res.Created.Metadata))

	got, err := s.GetDocument(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClassified, got.Status)
}

func TestAppendVersion_Immutable(t *testing.T) {
	ctx := context.Background()
	s := store.NewGormStore(tester.NewTestDB(t))
	m := NewManager()

	purged := root(model.StatusPurged)
	require.NoError(t, s.CreateDocument(ctx, purged))
	_, err := m.AppendVersion(ctx, s, purged.LineageID, &model.Document{Status: model.StatusReceived}, false)
	assert.ErrorIs(t, err, model.ErrImmutableLineage)

	live := root(model.StatusPublished)
	require.NoError(t, s.CreateDocument(ctx, live))
	_, err = m.AppendVersion(ctx, s, live.LineageID, &model.Document{Status: model.StatusReceived}, true)
	assert.ErrorIs(t, err, model.ErrImmutableLineage)

	_, err = m.AppendVersion(ctx, s, uuid.New().String(), &model.Document{Status: model.StatusReceived}, false)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = m.ListVersions(ctx, s, uuid.New().String())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func chainOf(statuses ...model.Status) []*model.Document {
	lineage := "l"
	docs := make([]*model.Document, len(statuses))
	for i, st := range statuses {
		n := len(statuses) - i
		docs[i] = &model.Document{ID: idFor(n), LineageID: lineage, VersionNumber: int64(n), Status: st}
		if n > 1 {
			prev := idFor(n - 1)
			docs[i].SupersedesID = &prev
		}
	}
	docs[len(docs)-1].ID = lineage
	if len(docs) > 1 {
		docs[len(docs)-2].SupersedesID = &lineage
	}
	return docs
}

func idFor(n int) string {
	return "v" + string(rune('0'+n))
}

func TestCurrent(t *testing.T) {
	tests := []struct {
		name    string
		chain   []*model.Document
		current int64
		err     error
	}{
		{"published head", chainOf(model.StatusPublished, model.StatusSuperseded), 2, nil},
		{"pending newer version", chainOf(model.StatusReceived, model.StatusPublished, model.StatusSuperseded), 3, nil},
		{"deleted head", chainOf(model.StatusSoftDeleted, model.StatusPublished), 1, nil},
		{"head pending deletion", chainOf(model.StatusPendingDeletion, model.StatusSuperseded, model.StatusReceived), 1, nil},
		{"only recycle bin", chainOf(model.StatusPendingDeletion, model.StatusSoftDeleted), 0, model.ErrNoCurrentVersion},
		{"all superseded", chainOf(model.StatusSuperseded, model.StatusSuperseded), 2, model.ErrNoCurrentVersion},
		{"all purged", chainOf(model.StatusPurged), 0, model.ErrNoCurrentVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Current(tt.chain)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			if tt.current == 0 {
				assert.Nil(t, doc)
			} else {
				require.NotNil(t, doc)
				assert.Equal(t, tt.current, doc.VersionNumber)
			}
		})
	}

	_, err := Current(nil)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(chainOf(model.StatusPublished, model.StatusSuperseded, model.StatusSuperseded)))

	twoPublished := chainOf(model.StatusPublished, model.StatusPublished)
	assert.Error(t, Validate(twoPublished))

	cyclic := chainOf(model.StatusPublished, model.StatusSuperseded, model.StatusSuperseded)
	back := cyclic[0].ID
	cyclic[2].SupersedesID = &back
	assert.Error(t, Validate(cyclic))

	dup := chainOf(model.StatusPublished, model.StatusSuperseded)
	dup[0].VersionNumber = 1
	assert.Error(t, Validate(dup))
}
