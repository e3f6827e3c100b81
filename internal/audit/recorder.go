// Package audit writes and queries the append-only audit trail.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/store"
	"github.com/google/uuid"
)

type Entry struct {
	DocumentID  string
	LineageID   string
	Action      model.Action
	PerformedBy string
	Details     string
	OldValue    *string
	NewValue    *string
	Scope       model.Scope
}

// StatusChange returns an entry for doc carrying the old and new status as its diff.
func StatusChange(doc *model.Document, action model.Action, by string, from, to model.Status) Entry {
	old, cur := string(from), string(to)
	return Entry{
		DocumentID:  doc.ID,
		LineageID:   doc.LineageID,
		Action:      action,
		PerformedBy: by,
		OldValue:    &old,
		NewValue:    &cur,
	}
}

type Recorder struct {
	now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// WithClock replaces the clock used for timestamps and report windows.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Record appends the entry through w, normally the transaction of the operation being audited.
// Any failure is reported as ErrAuditWriteFailure so the caller rolls back.
func (r *Recorder) Record(ctx context.Context, w store.AuditStore, e Entry) (*model.AuditEvent, error) {
	event := &model.AuditEvent{
		ID:          uuid.New().String(),
		Timestamp:   r.now().UTC(),
		DocumentID:  e.DocumentID,
		LineageID:   e.LineageID,
		Action:      e.Action,
		PerformedBy: e.PerformedBy,
		Details:     e.Details,
		OldValue:    e.OldValue,
		NewValue:    e.NewValue,
		Scope:       e.Scope,
	}

	if err := w.CreateAuditEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("%w: %s on %s: %v", model.ErrAuditWriteFailure, e.Action, e.DocumentID, err)
	}

	return event, nil
}

// ByDocument lists every event of one document, oldest first.
func (r *Recorder) ByDocument(ctx context.Context, s store.AuditStore, documentID string) ([]*model.AuditEvent, error) {
	return s.ListAuditEvents(ctx, store.AuditFilter{DocumentID: documentID})
}

type Filter struct {
	DocumentID  string       `json:"documentId,omitempty"`
	LineageID   string       `json:"lineageId,omitempty"`
	PerformedBy string       `json:"performedBy,omitempty"`
	Action      model.Action `json:"action,omitempty"`
	Scope       model.Scope  `json:"scope,omitempty"`
	From        time.Time    `json:"from,omitempty"`
	To          time.Time    `json:"to,omitempty"`
	Limit       int          `json:"limit,omitempty"`
}

func (r *Recorder) Filtered(ctx context.Context, s store.AuditStore, f Filter) ([]*model.AuditEvent, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("%w: audit range ends before it starts", model.ErrGuardFailed)
	}
	return s.ListAuditEvents(ctx, store.AuditFilter{
		DocumentID:  f.DocumentID,
		LineageID:   f.LineageID,
		PerformedBy: f.PerformedBy,
		Action:      f.Action,
		Scope:       f.Scope,
		From:        f.From,
		To:          f.To,
		Limit:       f.Limit,
	})
}

// RestrictedAccessReport lists the RESTRICTED scoped events of the last window.
func (r *Recorder) RestrictedAccessReport(ctx context.Context, s store.AuditStore, window time.Duration) ([]*model.AuditEvent, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: report window must be positive", model.ErrGuardFailed)
	}
	now := r.now().UTC()
	return s.ListAuditEvents(ctx, store.AuditFilter{
		Scope: model.ScopeRestricted,
		From:  now.Add(-window),
		To:    now,
	})
}
