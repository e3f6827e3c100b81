package service

import (
	"errors"
	"fmt"

	"github.com/emrgen/digidoc/internal/model"
	"google.golang.org/grpc/codes"
)

// TransitionError is returned when the state machine refuses an event.
type TransitionError struct {
	DocumentID string
	Event      model.Event
	From       model.Status
	Err        error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s on document %s in %s: %v", e.Event, e.DocumentID, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

type kind struct {
	err  error
	name string
	code codes.Code
}

// kinds is checked in order; the first match wins.
var kinds = []kind{
	{model.ErrConcurrentModification, "ConcurrentModification", codes.Aborted},
	{model.ErrAuditWriteFailure, "AuditWriteFailure", codes.Unavailable},
	{model.ErrLegalHoldBlock, "LegalHoldBlock", codes.FailedPrecondition},
	{model.ErrImmutableLineage, "ImmutableLineage", codes.FailedPrecondition},
	{model.ErrInvalidTransition, "InvalidTransition", codes.FailedPrecondition},
	{model.ErrGuardFailed, "GuardFailed", codes.InvalidArgument},
	{model.ErrPermissionDenied, "PermissionDenied", codes.PermissionDenied},
	{model.ErrNoCurrentVersion, "NoCurrentVersion", codes.NotFound},
	{model.ErrNotFound, "NotFound", codes.NotFound},
}

// Code maps an error returned by the service onto a grpc status code.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return codes.Internal
}

// Kind names the error taxonomy entry of err, or "Internal".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// Sentinel returns the error a Kind name stands for, or nil for unknown names.
func Sentinel(kind string) error {
	for _, k := range kinds {
		if k.name == kind {
			return k.err
		}
	}
	return nil
}
