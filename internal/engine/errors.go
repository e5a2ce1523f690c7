package engine

import (
	"errors"
	"fmt"
)

const (
	CodeSourceUnavailable = "E_SOURCE_UNAVAILABLE"
	CodeMappingInvalid    = "E_MAPPING_INVALID"
	CodeTransportFailed   = "E_TRANSPORT_FAILED"
	CodeWatermarkCorrupt  = "E_WATERMARK_CORRUPT"
)

// Error wraps replication failures with a stable code.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error     { return e.Err }
func (e *Error) CodeValue() string { return e.Code }

// NewError wraps err with a replication error code.
func NewError(code string, err error) *Error {
	if err == nil {
		return &Error{Code: code}
	}
	return &Error{Code: code, Err: err}
}

// IsCode reports whether err carries the given replication error code.
func IsCode(err error, code string) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
