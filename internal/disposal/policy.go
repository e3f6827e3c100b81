package disposal

import (
	"fmt"
	"time"

	"github.com/emrgen/digidoc/internal/model"
)

// DefaultRetentionYears applies to categories without a configured policy.
const DefaultRetentionYears = 7

type Verdict struct {
	Eligible  bool
	Reason    string
	ExpiresAt time.Time
}

// Evaluate decides whether doc has outlived its retention period and may move to PendingDeletion.
func Evaluate(doc *model.Document, retentionYears int, legalHold bool, now time.Time) Verdict {
	if retentionYears <= 0 {
		retentionYears = DefaultRetentionYears
	}
	v := Verdict{ExpiresAt: doc.CreatedAt.AddDate(retentionYears, 0, 0)}

	switch {
	case doc.Status != model.StatusPublished && doc.Status != model.StatusSuperseded:
		v.Reason = "only published or superseded documents are disposed"
	case legalHold:
		v.Reason = "legal hold active"
	case !now.After(v.ExpiresAt):
		v.Reason = "retention period not over"
	default:
		v.Eligible = true
		v.Reason = fmt.Sprintf("retention period of %d years expired", retentionYears)
	}

	return v
}
