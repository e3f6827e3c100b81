package access

import (
	"testing"

	"github.com/emrgen/digidoc/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	owner := model.Principal{ID: "u1", Role: model.RoleViewer}
	viewer := model.Principal{ID: "u2", Role: model.RoleViewer}
	manager := model.Principal{ID: "m1", Role: model.RoleManager}
	admin := model.Principal{ID: "a1", Role: model.RoleAdmin}
	anonymous := model.Principal{}

	tests := []struct {
		name      string
		level     model.Confidentiality
		principal model.Principal
		grant     bool
		allowed   bool
	}{
		{"public anonymous", model.ConfidentialityPublic, anonymous, false, false},
		{"public viewer", model.ConfidentialityPublic, viewer, false, true},
		{"internal viewer", model.ConfidentialityInternal, viewer, false, true},
		{"confidential viewer", model.ConfidentialityConfidential, viewer, false, false},
		{"confidential owner", model.ConfidentialityConfidential, owner, false, true},
		{"confidential manager", model.ConfidentialityConfidential, manager, false, true},
		{"restricted viewer", model.ConfidentialityRestricted, viewer, false, false},
		{"restricted viewer with grant", model.ConfidentialityRestricted, viewer, true, true},
		{"restricted manager", model.ConfidentialityRestricted, manager, false, false},
		{"restricted admin", model.ConfidentialityRestricted, admin, false, true},
		{"restricted owner", model.ConfidentialityRestricted, owner, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &model.Document{ID: "d1", OwnerID: "u1", UploaderID: "op1", ConfidentialityLevel: tt.level}
			d := Evaluate(doc, tt.principal, tt.grant)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.level, d.EffectiveConfidentiality)
			assert.NotEmpty(t, d.Reason)
		})
	}
}

func TestUploaderCountsAsOwner(t *testing.T) {
	doc := &model.Document{OwnerID: "u1", UploaderID: "op1", ConfidentialityLevel: model.ConfidentialityRestricted}
	assert.True(t, Evaluate(doc, model.Principal{ID: "op1", Role: model.RoleOperator}, false).Allowed)
}

func TestCanRequestAndDecide(t *testing.T) {
	doc := &model.Document{OwnerID: "u1", UploaderID: "op1", ConfidentialityLevel: model.ConfidentialityRestricted}

	assert.True(t, CanRequest(doc, model.Principal{ID: "u2", Role: model.RoleViewer}))
	assert.False(t, CanRequest(doc, model.Principal{ID: "u1", Role: model.RoleViewer}))
	assert.False(t, CanRequest(doc, model.Principal{ID: "a1", Role: model.RoleAdmin}))

	doc.ConfidentialityLevel = model.ConfidentialityConfidential
	assert.False(t, CanRequest(doc, model.Principal{ID: "u2", Role: model.RoleViewer}))

	assert.True(t, CanDecide(doc, model.Principal{ID: "u1"}, "u2"))
	assert.True(t, CanDecide(doc, model.Principal{ID: "a1", Role: model.RoleAdmin}, "u2"))
	assert.False(t, CanDecide(doc, model.Principal{ID: "u2", Role: model.RoleAdmin}, "u2"))
	assert.False(t, CanDecide(doc, model.Principal{ID: "m1", Role: model.RoleManager}, "u2"))

	assert.True(t, RequiresAudit(doc))
	doc.ConfidentialityLevel = model.ConfidentialityInternal
	assert.False(t, RequiresAudit(doc))
}
