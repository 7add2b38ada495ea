package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure detected while reconciling a live graph.
//
// Runtime errors abort the rest of the pass that raised them. The live graph
// keeps whatever progress the pass made before the failure.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// StableID identifies the declared entity being reconciled, if any.
	StableID string

	// Kind is the facet kind involved, if any.
	Kind string

	// Err is the underlying host error, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownFacetKind indicates the host cannot construct a kind.
	ErrCodeUnknownFacetKind RuntimeErrorCode = "UNKNOWN_FACET_KIND"

	// ErrCodeFacetConstructionFailed indicates the host accepted a kind but
	// returned no instance.
	ErrCodeFacetConstructionFailed RuntimeErrorCode = "FACET_CONSTRUCTION_FAILED"

	// ErrCodeAlreadySpawned indicates Spawn was called on a non-empty graph.
	ErrCodeAlreadySpawned RuntimeErrorCode = "ALREADY_SPAWNED"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session closed")

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.StableID != "" && e.Kind != "":
		msg += fmt.Sprintf(" (id=%s, kind=%s)", e.StableID, e.Kind)
	case e.StableID != "":
		msg += fmt.Sprintf(" (id=%s)", e.StableID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsUnknownFacetKind reports whether err is an UNKNOWN_FACET_KIND error.
func IsUnknownFacetKind(err error) bool {
	return hasCode(err, ErrCodeUnknownFacetKind)
}

// IsFacetConstructionFailed reports whether err is a
// FACET_CONSTRUCTION_FAILED error.
func IsFacetConstructionFailed(err error) bool {
	return hasCode(err, ErrCodeFacetConstructionFailed)
}

// IsAlreadySpawned reports whether err is an ALREADY_SPAWNED error.
func IsAlreadySpawned(err error) bool {
	return hasCode(err, ErrCodeAlreadySpawned)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func newUnknownFacetKind(id, kind string, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeUnknownFacetKind,
		Message:  "host cannot construct facet kind",
		StableID: id,
		Kind:     kind,
		Err:      err,
	}
}

func newFacetConstructionFailed(id, kind string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeFacetConstructionFailed,
		Message:  "host returned no facet instance",
		StableID: id,
		Kind:     kind,
	}
}

func newAlreadySpawned(live int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeAlreadySpawned,
		Message: fmt.Sprintf("live graph already holds %d entities", live),
	}
}
