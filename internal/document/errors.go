package document

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes document errors.
type ErrorCode string

const (
	// ErrCodeMalformedDocument indicates the text could not be split into
	// headed records.
	ErrCodeMalformedDocument ErrorCode = "MALFORMED_DOCUMENT"

	// ErrCodeUnparsableRecord indicates a record body is not valid YAML of
	// the expected shape.
	ErrCodeUnparsableRecord ErrorCode = "UNPARSABLE_RECORD"
)

// Error is returned by Split and ParseChunk.
type Error struct {
	Code     ErrorCode
	Message  string
	Line     int    // 1-based source line, 0 if unknown
	StableID string // record id, empty if the header was not read
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.StableID != "" {
		msg += fmt.Sprintf(" (id=%s)", e.StableID)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsMalformed returns true if err is a MALFORMED_DOCUMENT error.
func IsMalformed(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == ErrCodeMalformedDocument
}

// IsUnparsable returns true if err is an UNPARSABLE_RECORD error.
func IsUnparsable(err error) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == ErrCodeUnparsableRecord
}
