package disposal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emrgen/digidoc/internal/model"
	"github.com/sirupsen/logrus"
)

// Lifecycle is the part of the document service the sweeper drives.
// Documents only ever reach PendingDeletion through MarkPendingDeletion.
type Lifecycle interface {
	ListRetentionCandidates(ctx context.Context) ([]*model.Document, error)
	RetentionYears(ctx context.Context, category string) (int, error)
	LegalHoldActive(ctx context.Context) (bool, error)
	MarkPendingDeletion(ctx context.Context, documentID string, reason string) (*model.Document, error)
}

type Report struct {
	Scanned int      `json:"scanned"`
	Marked  []string `json:"marked"`
	Failed  int      `json:"failed"`
	Held    bool     `json:"held"`
}

type Sweeper struct {
	lifecycle Lifecycle
	now       func() time.Time
}

func NewSweeper(lifecycle Lifecycle) *Sweeper {
	return &Sweeper{lifecycle: lifecycle, now: time.Now}
}

// WithClock replaces the sweeper's clock.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep marks every expired Published or Superseded document as PendingDeletion.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	report := &Report{}

	hold, err := s.lifecycle.LegalHoldActive(ctx)
	if err != nil {
		return nil, err
	}
	if hold {
		logrus.Infof("retention sweep skipped: legal hold active")
		report.Held = true
		return report, nil
	}

	docs, err := s.lifecycle.ListRetentionCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list retention candidates: %w", err)
	}

	years := make(map[string]int)
	now := s.now()
	for _, doc := range docs {
		report.Scanned++

		y, ok := years[doc.Category]
		if !ok {
			y, err = s.lifecycle.RetentionYears(ctx, doc.Category)
			if err != nil {
				return report, err
			}
			years[doc.Category] = y
		}

		// the hold is rechecked by the transition itself
		verdict := Evaluate(doc, y, false, now)
		if !verdict.Eligible {
			continue
		}

		_, err := s.lifecycle.MarkPendingDeletion(ctx, doc.ID, verdict.Reason)
		switch {
		case err == nil:
			report.Marked = append(report.Marked, doc.ID)
		case errors.Is(err, model.ErrLegalHoldBlock):
			logrus.Infof("retention sweep stopped: legal hold activated")
			report.Held = true
			return report, nil
		default:
			logrus.Warnf("retention sweep: document %s: %v", doc.ID, err)
			report.Failed++
		}
	}

	logrus.Infof("retention sweep scanned %d documents, marked %d, failed %d", report.Scanned, len(report.Marked), report.Failed)

	return report, nil
}
