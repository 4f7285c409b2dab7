package replacer

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of replacer errors
type ErrorCode int

const (
	// Generic errors
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInternal

	// Frame errors
	ErrCodeFramePinned

	// Construction errors
	ErrCodeUnknownAlgorithm
	ErrCodeInvalidConfig

	// Snapshot errors
	ErrCodeSnapshotCorrupted
	ErrCodeCompression
)

// Error is a replacer error with context
type Error struct {
	Code    ErrorCode
	Message string
	Op      string // Operation that failed
	Err     error  // Underlying error (if any)
}

func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new replacer error
func NewError(code ErrorCode, op, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func ErrFramePinned[F FrameID](op string, id F) *Error {
	return NewError(ErrCodeFramePinned, op, fmt.Sprintf("frame %v is pinned", id), nil)
}

func ErrUnknownAlgorithm(op, name string) *Error {
	return NewError(
		ErrCodeUnknownAlgorithm,
		op,
		fmt.Sprintf("unknown algorithm %q (must be %s or %s)", name, AlgorithmLRU, AlgorithmLRUK),
		nil,
	)
}

func ErrInvalidConfig(op, message string) *Error {
	return NewError(ErrCodeInvalidConfig, op, message, nil)
}

func ErrSnapshotCorrupted(op, message string, err error) *Error {
	return NewError(ErrCodeSnapshotCorrupted, op, message, err)
}

// IsErrorCode checks if an error (or anything it wraps) has a specific code
func IsErrorCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// GetErrorCode returns the error code from an error, or ErrCodeUnknown
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeUnknown
}
