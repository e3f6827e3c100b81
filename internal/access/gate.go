// Package access computes read decisions from a document's confidentiality level and the caller's role.
package access

import (
	"github.com/emrgen/digidoc/internal/model"
)

type Decision struct {
	Allowed                  bool                  `json:"allowed"`
	Reason                   string                `json:"reason"`
	EffectiveConfidentiality model.Confidentiality `json:"effectiveConfidentiality"`
}

// Evaluate decides whether principal may read doc. hasGrant reports an approved access
// request for exactly this document version; it only matters for Restricted documents.
// The effective confidentiality is always the document's own level.
func Evaluate(doc *model.Document, principal model.Principal, hasGrant bool) Decision {
	d := Decision{EffectiveConfidentiality: doc.ConfidentialityLevel}

	if !principal.Authenticated() {
		d.Reason = "unauthenticated"
		return d
	}

	switch doc.ConfidentialityLevel {
	case model.ConfidentialityPublic, model.ConfidentialityInternal:
		d.Allowed = true
		d.Reason = "open to authenticated users"
	case model.ConfidentialityConfidential:
		switch {
		case principal.Elevated():
			d.Allowed, d.Reason = true, "elevated role"
		case doc.Owns(principal):
			d.Allowed, d.Reason = true, "owner"
		default:
			d.Reason = "confidential document"
		}
	case model.ConfidentialityRestricted:
		switch {
		case principal.IsAdmin():
			d.Allowed, d.Reason = true, "admin"
		case doc.Owns(principal):
			d.Allowed, d.Reason = true, "owner"
		case hasGrant:
			d.Allowed, d.Reason = true, "approved access request"
		default:
			d.Reason = "restricted document, access request required"
		}
	default:
		d.Reason = "unknown confidentiality level"
	}

	return d
}

// RequiresAudit reports whether reads of doc must be logged with the RESTRICTED scope.
func RequiresAudit(doc *model.Document) bool {
	return doc.ConfidentialityLevel.Sensitive()
}

// CanRequest reports whether principal is someone who would need an access request for doc.
func CanRequest(doc *model.Document, principal model.Principal) bool {
	if !principal.Authenticated() || doc.ConfidentialityLevel != model.ConfidentialityRestricted {
		return false
	}
	return !principal.IsAdmin() && !doc.Owns(principal)
}

// CanDecide reports whether decider may approve or deny a request for doc raised by requester.
func CanDecide(doc *model.Document, decider model.Principal, requester string) bool {
	if decider.ID == requester {
		return false
	}
	return decider.IsAdmin() || decider.ID == doc.OwnerID
}
