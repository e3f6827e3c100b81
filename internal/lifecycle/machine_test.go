package lifecycle

import (
	"testing"

	"github.com/emrgen/digidoc/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = model.Principal{ID: "admin", Role: model.RoleAdmin}
	manager  = model.Principal{ID: "m1", Role: model.RoleManager}
	operator = model.Principal{ID: "op1", Role: model.RoleOperator}
)

func doc(status model.Status) *model.Document {
	return &model.Document{
		ID:                   "d1",
		LineageID:            "d1",
		VersionNumber:        1,
		Status:               status,
		ApprovalStatus:       model.ApprovalNotRequired,
		ConfidentialityLevel: model.ConfidentialityInternal,
		OwnerID:              "op1",
		UploaderID:           "op1",
	}
}

func TestNext_HappyPath(t *testing.T) {
	tests := []struct {
		name     string
		from     model.Status
		event    model.Event
		in       Input
		status   model.Status
		approval model.ApprovalStatus
	}{
		{"start processing", model.StatusReceived, model.EventStartProcessing, Input{Principal: operator}, model.StatusProcessing, model.ApprovalNotRequired},
		{"classify", model.StatusProcessing, model.EventClassify, Input{Principal: operator, Payload: Payload{Category: "Invoice"}}, model.StatusClassified, model.ApprovalNotRequired},
		{"submit", model.StatusClassified, model.EventSubmitForApproval, Input{Principal: operator, ApprovalRequired: true}, model.StatusPendingApproval, model.ApprovalPending},
		{"auto publish", model.StatusClassified, model.EventAutoPublish, Input{Principal: operator, IsHead: true}, model.StatusPublished, model.ApprovalNotRequired},
		{"approve", model.StatusPendingApproval, model.EventApprove, Input{Principal: manager, IsHead: true}, model.StatusPublished, model.ApprovalApproved},
		{"approve and hold", model.StatusPendingApproval, model.EventApprove, Input{Principal: manager, Payload: Payload{HoldPublication: true}}, model.StatusApproved, model.ApprovalApproved},
		{"reject", model.StatusPendingApproval, model.EventReject, Input{Principal: manager, Payload: Payload{Reason: "blurry"}}, model.StatusRejected, model.ApprovalRejected},
		{"request changes", model.StatusPendingApproval, model.EventRequestChanges, Input{Principal: manager, Payload: Payload{Comments: "rescan page 2"}}, model.StatusChangesRequested, model.ApprovalPending},
		{"mark pending deletion", model.StatusPublished, model.EventMarkPendingDeletion, Input{Principal: model.SystemPrincipal}, model.StatusPendingDeletion, model.ApprovalNotRequired},
		{"purge", model.StatusSoftDeleted, model.EventPurge, Input{Principal: admin}, model.StatusPurged, model.ApprovalNotRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := doc(tt.from)
			if tt.from == model.StatusPendingApproval {
				d.ApprovalStatus = model.ApprovalPending
			}
			out, err := Next(d, tt.event, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.status, out.Status)
			assert.Equal(t, tt.approval, out.ApprovalStatus)
			assert.Equal(t, actions[tt.event], out.Action)
		})
	}
}

func TestNext_Errors(t *testing.T) {
	content := "new text"
	tests := []struct {
		name  string
		from  model.Status
		event model.Event
		in    Input
		err   error
	}{
		{"classify without category", model.StatusReceived, model.EventClassify, Input{Principal: operator}, model.ErrGuardFailed},
		{"publish from received", model.StatusReceived, model.EventPublish, Input{Principal: admin, IsHead: true}, model.ErrInvalidTransition},
		{"submit without policy", model.StatusClassified, model.EventSubmitForApproval, Input{Principal: operator}, model.ErrGuardFailed},
		{"auto publish with policy", model.StatusClassified, model.EventAutoPublish, Input{Principal: operator, ApprovalRequired: true, IsHead: true}, model.ErrGuardFailed},
		{"auto publish older version", model.StatusClassified, model.EventAutoPublish, Input{Principal: operator}, model.ErrGuardFailed},
		{"reject without reason", model.StatusPendingApproval, model.EventReject, Input{Principal: manager}, model.ErrGuardFailed},
		{"request changes without comments", model.StatusPendingApproval, model.EventRequestChanges, Input{Principal: manager}, model.ErrGuardFailed},
		{"approve by operator", model.StatusPendingApproval, model.EventApprove, Input{Principal: operator, IsHead: true}, model.ErrPermissionDenied},
		{"approve own upload", model.StatusPendingApproval, model.EventApprove, Input{Principal: model.Principal{ID: "op1", Role: model.RoleManager}, IsHead: true}, model.ErrGuardFailed},
		{"soft delete under hold", model.StatusPublished, model.EventSoftDelete, Input{Principal: admin, LegalHold: true}, model.ErrLegalHoldBlock},
		{"soft delete twice", model.StatusSoftDeleted, model.EventSoftDelete, Input{Principal: admin}, model.ErrInvalidTransition},
		{"soft delete by stranger", model.StatusPublished, model.EventSoftDelete, Input{Principal: model.Principal{ID: "v9", Role: model.RoleViewer}}, model.ErrPermissionDenied},
		{"purge under hold", model.StatusSoftDeleted, model.EventPurge, Input{Principal: admin, LegalHold: true}, model.ErrLegalHoldBlock},
		{"purge by operator", model.StatusSoftDeleted, model.EventPurge, Input{Principal: operator}, model.ErrPermissionDenied},
		{"purge live document", model.StatusPublished, model.EventPurge, Input{Principal: admin}, model.ErrInvalidTransition},
		{"restore purged", model.StatusPurged, model.EventRestore, Input{Principal: admin}, model.ErrInvalidTransition},
		{"pending deletion from classified", model.StatusClassified, model.EventMarkPendingDeletion, Input{Principal: model.SystemPrincipal}, model.ErrInvalidTransition},
		{"pending deletion under hold", model.StatusSuperseded, model.EventMarkPendingDeletion, Input{Principal: model.SystemPrincipal, LegalHold: true}, model.ErrLegalHoldBlock},
		{"reupload without content", model.StatusPublished, model.EventReupload, Input{Principal: operator, IsHead: true}, model.ErrGuardFailed},
		{"reupload under hold", model.StatusPublished, model.EventReupload, Input{Principal: operator, IsHead: true, LegalHold: true, Payload: Payload{Content: &content}}, model.ErrImmutableLineage},
		{"reupload superseded", model.StatusSuperseded, model.EventReupload, Input{Principal: operator, Payload: Payload{Content: &content}}, model.ErrConcurrentModification},
		{"reupload behind head", model.StatusPublished, model.EventReupload, Input{Principal: operator, Payload: Payload{Content: &content}}, model.ErrConcurrentModification},
		{"unknown event", model.StatusReceived, model.Event("teleport"), Input{Principal: admin}, model.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Next(doc(tt.from), tt.event, tt.in)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNext_Reupload(t *testing.T) {
	content := "rescanned"

	out, err := Next(doc(model.StatusPublished), model.EventReupload, Input{Principal: operator, IsHead: true, Payload: Payload{Content: &content}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuperseded, out.Status)
	require.NotNil(t, out.NewVersion)
	assert.Equal(t, model.StatusPublished, out.NewVersion.Status)
	assert.True(t, out.Publishes)

	out, err = Next(doc(model.StatusRejected), model.EventReupload, Input{Principal: operator, IsHead: true, Payload: Payload{Content: &content}})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuperseded, out.Status)
	assert.Equal(t, model.StatusClassified, out.NewVersion.Status)
	assert.False(t, out.Publishes)

	out, err = Next(doc(model.StatusChangesRequested), model.EventReclassify, Input{Principal: operator, IsHead: true, Payload: Payload{Category: "Contract"}})
	require.NoError(t, err)
	assert.Equal(t, "Contract", out.Category)
	assert.Equal(t, model.StatusClassified, out.NewVersion.Status)
	assert.Equal(t, model.ActionReclassifyVersion, out.Action)
}

func TestNext_SoftDeleteRestoreRoundTrip(t *testing.T) {
	for _, from := range []model.Status{model.StatusReceived, model.StatusClassified, model.StatusPendingApproval, model.StatusPublished, model.StatusRejected} {
		t.Run(string(from), func(t *testing.T) {
			d := doc(from)
			out, err := Next(d, model.EventSoftDelete, Input{Principal: admin})
			require.NoError(t, err)
			assert.Equal(t, model.StatusSoftDeleted, out.Status)
			assert.Equal(t, from, out.PriorStatus)

			d.Status, d.PriorStatus = out.Status, out.PriorStatus
			out, err = Next(d, model.EventRestore, Input{Principal: admin, IsHead: true})
			require.NoError(t, err)
			assert.Equal(t, from, out.Status)
			assert.Empty(t, out.PriorStatus)
		})
	}
}

func TestNext_RestorePublishedBehindNewerVersion(t *testing.T) {
	d := doc(model.StatusSoftDeleted)
	d.PriorStatus = model.StatusPublished

	out, err := Next(d, model.EventRestore, Input{Principal: admin, IsHead: true, OtherPublished: true})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuperseded, out.Status)

	out, err = Next(d, model.EventRestore, Input{Principal: admin, IsHead: false})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuperseded, out.Status)
}

func TestEvents(t *testing.T) {
	assert.Equal(t, []model.Event{model.EventRestore, model.EventPurge}, Events(model.StatusSoftDeleted))
	assert.Empty(t, Events(model.StatusPurged))
	assert.Contains(t, Events(model.StatusPublished), model.EventMarkPendingDeletion)
	assert.NotContains(t, Events(model.StatusClassified), model.EventMarkPendingDeletion)

	for _, event := range AllEvents() {
		assert.True(t, KnownEvent(event), event)
	}
	assert.Len(t, AllEvents(), 14)
}
