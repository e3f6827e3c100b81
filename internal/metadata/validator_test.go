package metadata

import (
	"testing"

	"github.com/emrgen/digidoc/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestInvoice(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"empty", ``, true},
		{"valid", `{"due_date":"2024-05-31","amount":1200.5}`, true},
		{"amount as string", `{"amount":"99.90"}`, true},
		{"bad date", `{"due_date":"31/05/2024"}`, false},
		{"date not string", `{"due_date":20240531}`, false},
		{"bad amount", `{"amount":"lots"}`, false},
		{"negative amount", `{"amount":-3}`, false},
		{"not an object", `[1,2]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate("Invoice", []byte(tt.raw))
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, model.ErrGuardFailed)
			}
		})
	}
}

func TestUnknownCategory(t *testing.T) {
	r := DefaultRegistry()
	assert.NoError(t, r.Validate("Memo", []byte(`{"anything":true}`)))
	assert.NoError(t, r.Validate("Memo", nil))
	assert.ErrorIs(t, r.Validate("Memo", []byte(`not json`)), model.ErrGuardFailed)
}
