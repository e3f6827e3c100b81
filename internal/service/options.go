package service

import (
	"time"

	"github.com/emrgen/digidoc/internal/disposal"
	"github.com/emrgen/digidoc/internal/metadata"
)

type Option func(*DocumentService)

// WithClock replaces time.Now for audit timestamps and retention checks.
func WithClock(now func() time.Time) Option {
	return func(d *DocumentService) {
		d.now = now
	}
}

// WithSelfApproval lets uploaders approve their own documents.
func WithSelfApproval(allow bool) Option {
	return func(d *DocumentService) {
		d.allowSelfApproval = allow
	}
}

func WithDefaultRetentionYears(years int) Option {
	return func(d *DocumentService) {
		if years <= 0 {
			years = disposal.DefaultRetentionYears
		}
		d.defaultRetentionYears = years
	}
}

func WithValidators(r *metadata.Registry) Option {
	return func(d *DocumentService) {
		d.validators = r
	}
}
