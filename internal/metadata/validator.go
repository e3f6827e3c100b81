// Package metadata validates the free-form metadata blob of a document per category.
// The blob itself is never rewritten; validation only reads it.
package metadata

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/emrgen/digidoc/internal/model"
)

// Validator checks the decoded metadata of one category.
type Validator func(fields map[string]interface{}) error

type Registry struct {
	validators map[string]Validator
}

func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// DefaultRegistry knows the built-in categories.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("Invoice", validateInvoice)
	return r
}

func (r *Registry) Register(category string, v Validator) {
	r.validators[category] = v
}

// Validate checks raw against the validator registered for category. Categories
// without a validator accept any JSON object.
func (r *Registry) Validate(category string, raw []byte) error {
	v, ok := r.validators[category]
	if !ok && len(raw) == 0 {
		return nil
	}

	fields := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return fmt.Errorf("%w: metadata must be a JSON object: %v", model.ErrGuardFailed, err)
		}
	}
	if !ok {
		return nil
	}
	if err := v(fields); err != nil {
		return fmt.Errorf("%w: %s metadata: %v", model.ErrGuardFailed, category, err)
	}
	return nil
}

func validateInvoice(fields map[string]interface{}) error {
	if due, ok := fields["due_date"]; ok && due != nil {
		s, isString := due.(string)
		if !isString {
			return fmt.Errorf("due_date must be a string")
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fmt.Errorf("due_date must be YYYY-MM-DD")
		}
	}

	if amount, ok := fields["amount"]; ok && amount != nil {
		switch v := amount.(type) {
		case float64:
			if v < 0 {
				return fmt.Errorf("amount must not be negative")
			}
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("amount must be numeric")
			}
			if f < 0 {
				return fmt.Errorf("amount must not be negative")
			}
		default:
			return fmt.Errorf("amount must be numeric")
		}
	}

	return nil
}
