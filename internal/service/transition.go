package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emrgen/digidoc/internal/audit"
	"github.com/emrgen/digidoc/internal/lifecycle"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/store"
	"github.com/emrgen/digidoc/internal/version"
	"github.com/sirupsen/logrus"
)

// ApplyTransition applies a lifecycle event to a document. Transitions that create a new
// version (reupload, reclassify) return the new version; all others return the updated document.
func (d *DocumentService) ApplyTransition(ctx context.Context, documentID string, event model.Event, payload lifecycle.Payload, principal model.Principal) (*model.Document, error) {
	if !principal.Authenticated() {
		return nil, fmt.Errorf("%w: transitions need an authenticated principal", model.ErrPermissionDenied)
	}

	var result *model.Document
	err := d.mutate(ctx, func(t *txn) error {
		doc, err := t.tx.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		chain, err := t.tx.ListLineage(ctx, doc.LineageID)
		if err != nil {
			return err
		}
		hold, err := d.legalHold(ctx, t.tx)
		if err != nil {
			return err
		}

		in := lifecycle.Input{
			Principal:         principal,
			Payload:           payload,
			LegalHold:         hold,
			AllowSelfApproval: d.allowSelfApproval,
			IsHead:            version.IsHead(chain, doc),
			OtherPublished:    version.OtherPublished(chain, doc),
		}
		if event == model.EventSubmitForApproval || event == model.EventAutoPublish {
			in.ApprovalRequired, err = d.approvalRequired(ctx, t.tx, doc)
			if err != nil {
				return err
			}
		}

		out, err := lifecycle.Next(doc, event, in)
		if err != nil {
			return &TransitionError{DocumentID: doc.ID, Event: event, From: doc.Status, Err: err}
		}

		next := doc.Clone()
		next.Status = out.Status
		next.ApprovalStatus = out.ApprovalStatus
		next.PriorStatus = out.PriorStatus

		if event == model.EventClassify {
			next.Category = out.Category
			next.Department = out.Department
			if len(payload.Metadata) > 0 {
				next.Metadata = payload.Metadata
			}
			if err := d.validators.Validate(next.Category, next.Metadata); err != nil {
				return &TransitionError{DocumentID: doc.ID, Event: event, From: doc.Status, Err: err}
			}
		}
		if out.Purge {
			next.ContentData = nil
			next.Compression = ""
			next.Metadata = nil
		}

		if err := t.tx.CompareAndSwapDocument(ctx, next, doc.Status, doc.Revision); err != nil {
			return err
		}

		e := audit.StatusChange(next, out.Action, principal.ID, doc.Status, next.Status)
		e.Details = out.Details
		if err := t.record(ctx, e); err != nil {
			return err
		}
		result = next

		if out.NewVersion != nil {
			created, err := d.appendFromTransition(ctx, t, doc, out, payload, principal, hold)
			if err != nil {
				return err
			}
			result = created
			if out.Publishes {
				return d.supersedeOthers(ctx, t, chain, principal, doc.ID, created.ID)
			}
			return nil
		}

		if out.Publishes {
			return d.supersedeOthers(ctx, t, chain, principal, doc.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("document %s: %s -> %s by %s", result.ID, event, result.Status, principal.ID)

	return result, nil
}

func (d *DocumentService) appendFromTransition(ctx context.Context, t *txn, doc *model.Document, out lifecycle.Outcome, payload lifecycle.Payload, principal model.Principal, hold bool) (*model.Document, error) {
	draft := &model.Document{
		Status:               out.NewVersion.Status,
		ApprovalStatus:       out.NewVersion.ApprovalStatus,
		ConfidentialityLevel: doc.ConfidentialityLevel,
		OwnerID:              doc.OwnerID,
		UploaderID:           principal.ID,
		PageCount:            doc.PageCount,
		Category:             out.Category,
		Department:           out.Department,
		Metadata:             payload.Metadata,
		ContentData:          doc.ContentData,
		Compression:          doc.Compression,
	}
	if payload.Content != nil {
		data, codec, err := d.encodeContent(*payload.Content)
		if err != nil {
			return nil, err
		}
		draft.ContentData, draft.Compression = data, codec
	}
	if err := d.validators.Validate(draft.Category, draft.Metadata); err != nil {
		return nil, err
	}

	if _, err := d.versions.AppendVersion(ctx, t.tx, doc.LineageID, draft, hold); err != nil {
		return nil, err
	}

	e := audit.StatusChange(draft, model.ActionVersionCreated, principal.ID, "", draft.Status)
	e.OldValue = nil
	e.Details = fmt.Sprintf("version %d supersedes version %d", draft.VersionNumber, doc.VersionNumber)
	if err := t.record(ctx, e); err != nil {
		return nil, err
	}

	return draft, nil
}

// supersedeOthers steps down every other Published version of the lineage.
func (d *DocumentService) supersedeOthers(ctx context.Context, t *txn, chain []*model.Document, principal model.Principal, keep ...string) error {
	for _, other := range chain {
		if other.Status != model.StatusPublished || contains(keep, other.ID) {
			continue
		}
		down := other.Clone()
		down.Status = model.StatusSuperseded
		if err := t.tx.CompareAndSwapDocument(ctx, down, other.Status, other.Revision); err != nil {
			return err
		}
		e := audit.StatusChange(down, model.ActionSupersede, principal.ID, model.StatusPublished, model.StatusSuperseded)
		if err := t.record(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (d *DocumentService) approvalRequired(ctx context.Context, s store.PolicyStore, doc *model.Document) (bool, error) {
	policies, err := s.ListApprovalPolicies(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range policies {
		if p.Matches(doc.Category, doc.ConfidentialityLevel) {
			return true, nil
		}
	}
	return false, nil
}

// ReclassifyRequest lists the classification fields to change. Empty fields stay as they are.
type ReclassifyRequest struct {
	Category             string                `json:"category,omitempty"`
	Department           string                `json:"department,omitempty"`
	ConfidentialityLevel model.Confidentiality `json:"confidentialityLevel,omitempty"`
}

type classification struct {
	Category             string                `json:"category"`
	Department           string                `json:"department"`
	ConfidentialityLevel model.Confidentiality `json:"confidentialityLevel"`
}

// Reclassify changes category, department or confidentiality in place. No version is created.
// Dropping out of Restricted closes the pending access requests of the lineage.
func (d *DocumentService) Reclassify(ctx context.Context, documentID string, req ReclassifyRequest, principal model.Principal) (*model.Document, error) {
	if req.ConfidentialityLevel != "" && !req.ConfidentialityLevel.Valid() {
		return nil, fmt.Errorf("%w: unknown confidentiality level %q", model.ErrGuardFailed, req.ConfidentialityLevel)
	}

	var result *model.Document
	err := d.mutate(ctx, func(t *txn) error {
		doc, err := t.tx.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if doc.Status == model.StatusPurged {
			return fmt.Errorf("%w: document %s is purged", model.ErrImmutableLineage, doc.ID)
		}
		if !doc.Owns(principal) && !principal.Elevated() {
			return fmt.Errorf("%w: only the owner or a manager can reclassify", model.ErrPermissionDenied)
		}

		old := classification{doc.Category, doc.Department, doc.ConfidentialityLevel}
		cur := old
		if req.Category != "" {
			cur.Category = req.Category
		}
		if req.Department != "" {
			cur.Department = req.Department
		}
		if req.ConfidentialityLevel != "" {
			cur.ConfidentialityLevel = req.ConfidentialityLevel
		}
		if cur == old {
			return fmt.Errorf("%w: classification unchanged", model.ErrGuardFailed)
		}
		if cur.Category != old.Category {
			if err := d.validators.Validate(cur.Category, doc.Metadata); err != nil {
				return err
			}
		}

		next := doc.Clone()
		next.Category = cur.Category
		next.Department = cur.Department
		next.ConfidentialityLevel = cur.ConfidentialityLevel
		if err := t.tx.CompareAndSwapDocument(ctx, next, doc.Status, doc.Revision); err != nil {
			return err
		}

		oldValue, err := json.Marshal(old)
		if err != nil {
			return err
		}
		newValue, err := json.Marshal(cur)
		if err != nil {
			return err
		}
		ov, nv := string(oldValue), string(newValue)
		if err := t.record(ctx, audit.Entry{
			DocumentID:  next.ID,
			LineageID:   next.LineageID,
			Action:      model.ActionReclassify,
			PerformedBy: principal.ID,
			OldValue:    &ov,
			NewValue:    &nv,
		}); err != nil {
			return err
		}

		if old.ConfidentialityLevel == model.ConfidentialityRestricted && cur.ConfidentialityLevel != model.ConfidentialityRestricted {
			if err := d.closePendingRequests(ctx, t, next, principal); err != nil {
				return err
			}
		}

		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
