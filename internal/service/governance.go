package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/emrgen/digidoc/internal/audit"
	"github.com/emrgen/digidoc/internal/disposal"
	"github.com/emrgen/digidoc/internal/lifecycle"
	"github.com/emrgen/digidoc/internal/model"
	"github.com/sirupsen/logrus"
)

var _ disposal.Lifecycle = (*DocumentService)(nil)

// SetLegalHold switches the process wide legal hold. Every deletion path reads it from the
// store inside its own transaction, so the change applies to the next call.
func (d *DocumentService) SetLegalHold(ctx context.Context, active bool, principal model.Principal) error {
	if !principal.Elevated() {
		return fmt.Errorf("%w: legal hold requires elevated privilege", model.ErrPermissionDenied)
	}

	err := d.mutate(ctx, func(t *txn) error {
		current, err := d.legalHold(ctx, t.tx)
		if err != nil {
			return err
		}

		err = t.tx.SaveSetting(ctx, &model.Setting{
			Key:       model.SettingLegalHold,
			Value:     strconv.FormatBool(active),
			UpdatedBy: principal.ID,
			UpdatedAt: d.now().UTC(),
		})
		if err != nil {
			return err
		}

		old, cur := strconv.FormatBool(current), strconv.FormatBool(active)
		return t.record(ctx, audit.Entry{
			Action:      model.ActionLegalHold,
			PerformedBy: principal.ID,
			OldValue:    &old,
			NewValue:    &cur,
			Scope:       model.ScopeGovernance,
		})
	})
	if err != nil {
		return err
	}

	logrus.Warnf("legal hold set to %t by %s", active, principal.ID)

	return nil
}

// LegalHoldActive reads the current legal hold flag.
func (d *DocumentService) LegalHoldActive(ctx context.Context) (bool, error) {
	return d.legalHold(ctx, d.store)
}

// QueryAudit returns the audit events matching the filter.
func (d *DocumentService) QueryAudit(ctx context.Context, filter audit.Filter, principal model.Principal) ([]*model.AuditEvent, error) {
	if !principal.Elevated() {
		return nil, fmt.Errorf("%w: audit queries require elevated privilege", model.ErrPermissionDenied)
	}
	return d.recorder.Filtered(ctx, d.store, filter)
}

// RestrictedAccessReport returns the RESTRICTED scoped audit events of the last windowDays days.
func (d *DocumentService) RestrictedAccessReport(ctx context.Context, windowDays int, principal model.Principal) ([]*model.AuditEvent, error) {
	if !principal.Elevated() {
		return nil, fmt.Errorf("%w: compliance reports require elevated privilege", model.ErrPermissionDenied)
	}
	return d.recorder.RestrictedAccessReport(ctx, d.store, time.Duration(windowDays)*24*time.Hour)
}

func (d *DocumentService) ListRetentionCandidates(ctx context.Context) ([]*model.Document, error) {
	return d.store.ListDocumentsByStatus(ctx, model.StatusPublished, model.StatusSuperseded)
}

// RetentionYears returns the configured retention of a category, or the default.
func (d *DocumentService) RetentionYears(ctx context.Context, category string) (int, error) {
	policy, err := d.store.GetRetentionPolicy(ctx, category)
	if errors.Is(err, model.ErrNotFound) {
		return d.defaultRetentionYears, nil
	}
	if err != nil {
		return 0, err
	}
	return policy.RetentionYears, nil
}

// MarkPendingDeletion moves an expired document to PendingDeletion through the state machine.
func (d *DocumentService) MarkPendingDeletion(ctx context.Context, documentID string, reason string) (*model.Document, error) {
	return d.ApplyTransition(ctx, documentID, model.EventMarkPendingDeletion, lifecycle.Payload{Reason: reason}, model.SystemPrincipal)
}

// SweepRetention evaluates every Published and Superseded document against its retention policy.
func (d *DocumentService) SweepRetention(ctx context.Context) (*disposal.Report, error) {
	return disposal.NewSweeper(d).WithClock(d.now).Sweep(ctx)
}

// SeedPolicies stores retention and approval policies loaded from configuration.
// Approval policies already present are left alone.
func (d *DocumentService) SeedPolicies(ctx context.Context, retention map[string]int, approvals []model.ApprovalPolicy) error {
	existing, err := d.store.ListApprovalPolicies(ctx)
	if err != nil {
		return err
	}

	for category, years := range retention {
		if years <= 0 {
			return fmt.Errorf("retention for %s must be positive", category)
		}
		err := d.store.SaveRetentionPolicy(ctx, &model.RetentionPolicy{
			Category:       category,
			RetentionYears: years,
			UpdatedAt:      d.now().UTC(),
		})
		if err != nil {
			return err
		}
	}

	for i := range approvals {
		p := approvals[i]
		if p.MatchType != model.MatchCategory && p.MatchType != model.MatchConfidentiality {
			return fmt.Errorf("unknown approval policy match %q", p.MatchType)
		}
		if hasPolicy(existing, p) {
			continue
		}
		p.ID = 0
		if err := d.store.CreateApprovalPolicy(ctx, &p); err != nil {
			return err
		}
	}

	return nil
}

func hasPolicy(policies []*model.ApprovalPolicy, p model.ApprovalPolicy) bool {
	for _, e := range policies {
		if e.MatchType == p.MatchType && e.MatchValue == p.MatchValue {
			return true
		}
	}
	return false
}
