package relq

import "fmt"

// =====================================
// Error Handling
// =====================================

// Error represents a relq-specific error
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e Error) Is(target error) bool {
	if targetErr, ok := target.(Error); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// NewError creates a new Error
func NewError(errorType ErrorType, message string) Error {
	return Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error with a cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// IsInvalidEntity checks if an error is an "invalid entity reference" error
func IsInvalidEntity(err error) bool {
	return IsErrorType(err, ErrorTypeInvalidEntity)
}

// IsUnresolvedRelation checks if an error is an "unresolved relationship
// reference" error
func IsUnresolvedRelation(err error) bool {
	return IsErrorType(err, ErrorTypeUnresolvedRelation)
}

// IsUnknownRelation checks if an error is an "unknown relationship" error
func IsUnknownRelation(err error) bool {
	return IsErrorType(err, ErrorTypeUnknownRelation)
}

// IsMalformedTable checks if an error is a "malformed table declaration" error
func IsMalformedTable(err error) bool {
	return IsErrorType(err, ErrorTypeMalformedTable)
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if relqErr, ok := err.(Error); ok {
		return relqErr.Type == errorType
	}
	return false
}
