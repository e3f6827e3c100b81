package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/emrgen/digidoc/internal/access"
	"github.com/emrgen/digidoc/internal/audit"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EvaluateAccess runs the confidentiality gate for one document. Evaluations of Confidential
// and Restricted documents are recorded with the RESTRICTED scope whatever the outcome.
func (d *DocumentService) EvaluateAccess(ctx context.Context, documentID string, principal model.Principal) (access.Decision, error) {
	var decision access.Decision
	err := d.mutate(ctx, func(t *txn) error {
		doc, err := t.tx.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		decision, err = d.evaluate(ctx, t, doc, principal)
		return err
	})
	if err != nil {
		return access.Decision{}, err
	}
	return decision, nil
}

func (d *DocumentService) evaluate(ctx context.Context, t *txn, doc *model.Document, principal model.Principal) (access.Decision, error) {
	grant := false
	if doc.ConfidentialityLevel == model.ConfidentialityRestricted && principal.Authenticated() {
		var err error
		grant, err = t.tx.HasApprovedAccessRequest(ctx, principal.ID, doc.ID)
		if err != nil {
			return access.Decision{}, err
		}
	}

	decision := access.Evaluate(doc, principal, grant)
	if !access.RequiresAudit(doc) {
		return decision, nil
	}

	outcome := "denied"
	if decision.Allowed {
		outcome = "allowed"
	}
	performedBy := principal.ID
	if performedBy == "" {
		performedBy = "anonymous"
	}
	err := t.record(ctx, audit.Entry{
		DocumentID:  doc.ID,
		LineageID:   doc.LineageID,
		Action:      model.ActionAccessEvaluated,
		PerformedBy: performedBy,
		Details:     fmt.Sprintf("%s: %s (%s)", outcome, decision.Reason, doc.ConfidentialityLevel),
		Scope:       model.ScopeRestricted,
	})
	if err != nil {
		return access.Decision{}, err
	}

	return decision, nil
}

// RequestAccess files a request for a Restricted document. A pending request of the same
// user for the same document is returned instead of creating a second one.
func (d *DocumentService) RequestAccess(ctx context.Context, documentID string, principal model.Principal, reason string) (*model.AccessRequest, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: a reason is required", model.ErrGuardFailed)
	}

	var req *model.AccessRequest
	err := d.mutate(ctx, func(t *txn) error {
		doc, err := t.tx.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if !access.CanRequest(doc, principal) {
			return fmt.Errorf("%w: access requests only apply to restricted documents the caller cannot already read", model.ErrGuardFailed)
		}

		granted, err := t.tx.HasApprovedAccessRequest(ctx, principal.ID, doc.ID)
		if err != nil {
			return err
		}
		if granted {
			return fmt.Errorf("%w: access already granted", model.ErrGuardFailed)
		}

		existing, err := t.tx.FindPendingAccessRequest(ctx, principal.ID, doc.ID)
		if err == nil {
			req = existing
			return nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return err
		}

		req = &model.AccessRequest{
			ID:         uuid.New().String(),
			UserID:     principal.ID,
			DocumentID: doc.ID,
			LineageID:  doc.LineageID,
			Reason:     reason,
			Status:     model.AccessPending,
			CreatedAt:  d.now().UTC(),
		}
		if err := t.tx.CreateAccessRequest(ctx, req); err != nil {
			return err
		}

		return t.record(ctx, audit.Entry{
			DocumentID:  doc.ID,
			LineageID:   doc.LineageID,
			Action:      model.ActionAccessRequested,
			PerformedBy: principal.ID,
			Details:     reason,
			Scope:       model.ScopeRestricted,
		})
	})
	if err != nil {
		return nil, err
	}

	return req, nil
}

// DecideAccessRequest approves or denies a pending request. Only an admin or the document
// owner may decide, and never the requester.
func (d *DocumentService) DecideAccessRequest(ctx context.Context, requestID string, approve bool, decider model.Principal) (*model.AccessRequest, error) {
	var req *model.AccessRequest
	err := d.mutate(ctx, func(t *txn) error {
		var err error
		req, err = t.tx.GetAccessRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != model.AccessPending {
			return fmt.Errorf("%w: request %s is already %s", model.ErrInvalidTransition, req.ID, req.Status)
		}

		doc, err := t.tx.GetDocument(ctx, req.DocumentID)
		if err != nil {
			return err
		}
		if !access.CanDecide(doc, decider, req.UserID) {
			return fmt.Errorf("%w: only an admin or the owner can decide, and not on their own request", model.ErrPermissionDenied)
		}

		now := d.now().UTC()
		req.Status = model.AccessDenied
		if approve {
			req.Status = model.AccessApproved
		}
		req.DecidedBy = decider.ID
		req.DecidedAt = &now
		if err := t.tx.UpdateAccessRequestDecision(ctx, req); err != nil {
			return err
		}

		old, cur := string(model.AccessPending), string(req.Status)
		return t.record(ctx, audit.Entry{
			DocumentID:  doc.ID,
			LineageID:   doc.LineageID,
			Action:      model.ActionAccessDecided,
			PerformedBy: decider.ID,
			Details:     fmt.Sprintf("request %s by %s", req.ID, req.UserID),
			OldValue:    &old,
			NewValue:    &cur,
			Scope:       model.ScopeRestricted,
		})
	})
	if err != nil {
		return nil, err
	}

	logrus.Infof("access request %s %s by %s", req.ID, req.Status, decider.ID)

	return req, nil
}

// ListAccessRequests lists requests, optionally for one document and status.
// Principals without elevated role only see their own requests.
func (d *DocumentService) ListAccessRequests(ctx context.Context, documentID string, status model.AccessRequestStatus, principal model.Principal) ([]*model.AccessRequest, error) {
	if !principal.Authenticated() {
		return nil, model.ErrPermissionDenied
	}
	reqs, err := d.store.ListAccessRequests(ctx, documentID, status)
	if err != nil {
		return nil, err
	}
	if principal.Elevated() {
		return reqs, nil
	}

	own := make([]*model.AccessRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.UserID == principal.ID {
			own = append(own, r)
		}
	}
	return own, nil
}

// closePendingRequests denies the open requests for doc once it is no longer Restricted.
// Requests for other versions of the lineage are grants on those versions and stay open.
func (d *DocumentService) closePendingRequests(ctx context.Context, t *txn, doc *model.Document, principal model.Principal) error {
	pending, err := t.tx.ListPendingAccessRequestsByLineage(ctx, doc.LineageID)
	if err != nil {
		return err
	}

	now := d.now().UTC()
	for _, req := range pending {
		if req.DocumentID != doc.ID {
			continue
		}
		req.Status = model.AccessDenied
		req.DecidedBy = principal.ID
		req.DecidedAt = &now
		if err := t.tx.UpdateAccessRequestDecision(ctx, req); err != nil {
			return err
		}
		old, cur := string(model.AccessPending), string(model.AccessDenied)
		if err := t.record(ctx, audit.Entry{
			DocumentID:  req.DocumentID,
			LineageID:   doc.LineageID,
			Action:      model.ActionAccessRequestClosed,
			PerformedBy: principal.ID,
			Details:     fmt.Sprintf("request %s closed: document reclassified to %s", req.ID, doc.ConfidentialityLevel),
			OldValue:    &old,
			NewValue:    &cur,
			Scope:       model.ScopeRestricted,
		}); err != nil {
			return err
		}
	}
	return nil
}
