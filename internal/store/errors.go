package store

import (
	"errors"
	"strings"

	"github.com/emrgen/digidoc/internal/model"
	"gorm.io/gorm"
)

var (
	// ErrStaleDocument is returned by CompareAndSwapDocument when the stored row moved on.
	ErrStaleDocument = errors.New("document was modified concurrently")
	// ErrDuplicateVersion is returned when a version number is already taken in the lineage.
	ErrDuplicateVersion = errors.New("version number already exists in lineage")
)

// translate maps driver errors onto the store and model sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return ErrDuplicateVersion
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}
