// Package lifecycle holds the document state machine. It is pure: every piece of
// outside state a guard depends on, including the legal hold flag, arrives in Input.
package lifecycle

import (
	"fmt"

	"github.com/emrgen/digidoc/internal/model"
	"gorm.io/datatypes"
)

// Payload carries the optional arguments of an event.
type Payload struct {
	Category   string         `json:"category,omitempty"`
	Department string         `json:"department,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Comments   string         `json:"comments,omitempty"`
	Content    *string        `json:"content,omitempty"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	// HoldPublication stops approve at Approved instead of publishing right away.
	HoldPublication bool `json:"holdPublication,omitempty"`
}

type Input struct {
	Principal         model.Principal
	Payload           Payload
	LegalHold         bool
	ApprovalRequired  bool
	AllowSelfApproval bool
	// IsHead is true when the document has the highest version number in its lineage.
	IsHead bool
	// OtherPublished is true when another version of the lineage is Published.
	OtherPublished bool
}

// VersionPlan describes the version a transition asks the chain manager to append.
type VersionPlan struct {
	Status         model.Status
	ApprovalStatus model.ApprovalStatus
}

// Outcome is the computed result of a transition. Nothing is written by Next.
type Outcome struct {
	Status         model.Status
	ApprovalStatus model.ApprovalStatus
	PriorStatus    model.Status
	Category       string
	Department     string
	NewVersion     *VersionPlan
	// Publishes is set when the resulting document (or its new version) becomes the published one.
	Publishes bool
	// Purge tells the caller to wipe content and metadata.
	Purge   bool
	Action  model.Action
	Details string
}

// Next validates event against the document state and guards and returns the resulting state.
func Next(doc *model.Document, event model.Event, in Input) (Outcome, error) {
	if !KnownEvent(event) {
		return Outcome{}, fmt.Errorf("%w: unknown event %q", model.ErrInvalidTransition, event)
	}

	// the loser of a reupload race finds its target already superseded
	if doc.Status == model.StatusSuperseded && (event == model.EventReupload || event == model.EventReclassify) {
		return Outcome{}, fmt.Errorf("%w: version %d is no longer current", model.ErrConcurrentModification, doc.VersionNumber)
	}

	if !Allowed(doc.Status, event) {
		return Outcome{}, fmt.Errorf("%w: %s is not allowed from %s", model.ErrInvalidTransition, event, doc.Status)
	}

	out := Outcome{
		Status:         doc.Status,
		ApprovalStatus: doc.ApprovalStatus,
		PriorStatus:    doc.PriorStatus,
		Category:       doc.Category,
		Department:     doc.Department,
		Action:         actions[event],
	}
	p := in.Payload

	switch event {
	case model.EventStartProcessing:
		out.Status = model.StatusProcessing

	case model.EventClassify:
		if p.Category != "" {
			out.Category = p.Category
		}
		if p.Department != "" {
			out.Department = p.Department
		}
		if out.Category == "" {
			return Outcome{}, fmt.Errorf("%w: category must be assigned before classification", model.ErrGuardFailed)
		}
		out.Status = model.StatusClassified
		out.Details = fmt.Sprintf("category=%s", out.Category)

	case model.EventSubmitForApproval:
		if !in.ApprovalRequired {
			return Outcome{}, fmt.Errorf("%w: no approval policy applies, use %s", model.ErrGuardFailed, model.EventAutoPublish)
		}
		out.Status = model.StatusPendingApproval
		out.ApprovalStatus = model.ApprovalPending

	case model.EventAutoPublish:
		if in.ApprovalRequired {
			return Outcome{}, fmt.Errorf("%w: approval is required before publication", model.ErrGuardFailed)
		}
		if err := publishable(doc, in); err != nil {
			return Outcome{}, err
		}
		out.Status = model.StatusPublished
		out.ApprovalStatus = model.ApprovalNotRequired
		out.Publishes = true

	case model.EventApprove:
		if err := reviewer(doc, in, true); err != nil {
			return Outcome{}, err
		}
		out.ApprovalStatus = model.ApprovalApproved
		if p.HoldPublication {
			out.Status = model.StatusApproved
			break
		}
		if err := publishable(doc, in); err != nil {
			return Outcome{}, err
		}
		out.Status = model.StatusPublished
		out.Publishes = true
		out.Details = p.Comments

	case model.EventPublish:
		if err := publishable(doc, in); err != nil {
			return Outcome{}, err
		}
		out.Status = model.StatusPublished
		out.Publishes = true

	case model.EventReject:
		if p.Reason == "" {
			return Outcome{}, fmt.Errorf("%w: a rejection reason is required", model.ErrGuardFailed)
		}
		if err := reviewer(doc, in, false); err != nil {
			return Outcome{}, err
		}
		out.Status = model.StatusRejected
		out.ApprovalStatus = model.ApprovalRejected
		out.Details = p.Reason

	case model.EventRequestChanges:
		if p.Comments == "" {
			return Outcome{}, fmt.Errorf("%w: comments are required when requesting changes", model.ErrGuardFailed)
		}
		if err := reviewer(doc, in, false); err != nil {
			return Outcome{}, err
		}
		out.Status = model.StatusChangesRequested
		out.Details = p.Comments

	case model.EventReclassify, model.EventReupload:
		if event == model.EventReupload && p.Content == nil {
			return Outcome{}, fmt.Errorf("%w: reupload needs the new content", model.ErrGuardFailed)
		}
		if in.LegalHold {
			return Outcome{}, fmt.Errorf("%w: legal hold is active", model.ErrImmutableLineage)
		}
		if !in.IsHead {
			return Outcome{}, fmt.Errorf("%w: version %d is no longer the lineage head", model.ErrConcurrentModification, doc.VersionNumber)
		}
		if p.Category != "" {
			out.Category = p.Category
		}
		if p.Department != "" {
			out.Department = p.Department
		}
		out.Status = model.StatusSuperseded
		plan := &VersionPlan{Status: model.StatusClassified, ApprovalStatus: model.ApprovalNotRequired}
		if doc.Status == model.StatusPublished {
			plan.Status = model.StatusPublished
			plan.ApprovalStatus = doc.ApprovalStatus
			out.Publishes = true
		}
		out.NewVersion = plan
		out.Details = p.Reason

	case model.EventSoftDelete:
		if in.LegalHold {
			return Outcome{}, fmt.Errorf("%w: soft delete is suspended", model.ErrLegalHoldBlock)
		}
		if !doc.Owns(in.Principal) && !in.Principal.Elevated() {
			return Outcome{}, fmt.Errorf("%w: only the owner or a manager can delete", model.ErrPermissionDenied)
		}
		out.PriorStatus = doc.Status
		out.Status = model.StatusSoftDeleted
		out.Details = p.Reason

	case model.EventMarkPendingDeletion:
		if in.LegalHold {
			return Outcome{}, fmt.Errorf("%w: disposal is suspended", model.ErrLegalHoldBlock)
		}
		if !in.Principal.Elevated() {
			return Outcome{}, fmt.Errorf("%w: disposal is policy driven", model.ErrPermissionDenied)
		}
		out.PriorStatus = doc.Status
		out.Status = model.StatusPendingDeletion
		out.Details = p.Reason

	case model.EventRestore:
		out.Status = restoreTarget(doc, in)
		out.PriorStatus = ""

	case model.EventPurge:
		if !in.Principal.Elevated() {
			return Outcome{}, fmt.Errorf("%w: purge requires elevated privilege", model.ErrPermissionDenied)
		}
		if in.LegalHold {
			return Outcome{}, fmt.Errorf("%w: purge is suspended", model.ErrLegalHoldBlock)
		}
		out.Status = model.StatusPurged
		out.Purge = true
	}

	return out, nil
}

func publishable(doc *model.Document, in Input) error {
	if !in.IsHead {
		return fmt.Errorf("%w: version %d is not the newest version of its lineage", model.ErrGuardFailed, doc.VersionNumber)
	}
	return nil
}

func reviewer(doc *model.Document, in Input, approving bool) error {
	if !in.Principal.Elevated() {
		return fmt.Errorf("%w: reviewing requires a manager", model.ErrPermissionDenied)
	}
	if approving && !in.AllowSelfApproval && in.Principal.ID == doc.UploaderID {
		return fmt.Errorf("%w: approver must differ from the uploader", model.ErrGuardFailed)
	}
	return nil
}

func restoreTarget(doc *model.Document, in Input) model.Status {
	prior := doc.PriorStatus
	if prior == "" {
		return model.StatusSuperseded
	}
	if prior == model.StatusPublished && (!in.IsHead || in.OtherPublished) {
		return model.StatusSuperseded
	}
	return prior
}
