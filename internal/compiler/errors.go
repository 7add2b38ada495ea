package compiler

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// ErrorCode categorizes tree compilation errors.
type ErrorCode string

const (
	// ErrCodeMalformedDocument indicates duplicate ids, a cycle, or a record
	// of the wrong class where a node or link was expected.
	ErrCodeMalformedDocument ErrorCode = "MALFORMED_DOCUMENT"

	// ErrCodeRootNotFound indicates no link record has an absent parent.
	ErrCodeRootNotFound ErrorCode = "ROOT_NOT_FOUND"

	// ErrCodeDanglingReference indicates a non-sentinel reference to an id
	// that no record declares.
	ErrCodeDanglingReference ErrorCode = "DANGLING_REFERENCE"
)

// TreeError is returned by CompileTree.
type TreeError struct {
	Code     ErrorCode
	Message  string
	StableID string
}

func (e *TreeError) Error() string {
	if e.StableID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Message, e.StableID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMalformed returns true if err is a MALFORMED_DOCUMENT tree error.
func IsMalformed(err error) bool {
	return hasCode(err, ErrCodeMalformedDocument)
}

// IsRootNotFound returns true if err is a ROOT_NOT_FOUND error.
func IsRootNotFound(err error) bool {
	return hasCode(err, ErrCodeRootNotFound)
}

// IsDanglingReference returns true if err is a DANGLING_REFERENCE error.
func IsDanglingReference(err error) bool {
	return hasCode(err, ErrCodeDanglingReference)
}

func hasCode(err error, code ErrorCode) bool {
	var te *TreeError
	return errors.As(err, &te) && te.Code == code
}

// CompileError represents a registry schema error with CUE position info.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
