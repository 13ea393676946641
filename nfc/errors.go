package nfc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of NFC error for programmatic handling.
type ErrorCode int

const (
	// Codec errors (100-199)
	ErrCodeInvalidLanguageCode ErrorCode = iota + 100
	ErrCodeEmptyPayload
	ErrCodeTruncatedPayload
	ErrCodeInvalidNdefMessage
)

const (
	// Tag operation errors (200-299)
	ErrCodeConnectionFailed ErrorCode = iota + 200
	ErrCodeTagReadOnly
	ErrCodeWriteFailed
	ErrCodeNoNdefMessage
	ErrCodeCapacityExceeded
	ErrCodeLockFailed
	ErrCodeLockNotConfirmed
	ErrCodeNotSupported
)

var codeNames = map[ErrorCode]string{
	ErrCodeInvalidLanguageCode: "InvalidLanguageCode",
	ErrCodeEmptyPayload:        "EmptyPayload",
	ErrCodeTruncatedPayload:    "TruncatedPayload",
	ErrCodeInvalidNdefMessage:  "InvalidNdefMessage",
	ErrCodeConnectionFailed:    "ConnectionFailed",
	ErrCodeTagReadOnly:         "TagReadOnly",
	ErrCodeWriteFailed:         "WriteFailed",
	ErrCodeNoNdefMessage:       "NoNdefMessage",
	ErrCodeCapacityExceeded:    "CapacityExceeded",
	ErrCodeLockFailed:          "LockFailed",
	ErrCodeLockNotConfirmed:    "LockNotConfirmed",
	ErrCodeNotSupported:        "NotSupported",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Sentinel values for errors.Is matching. Only the Code is compared.
var (
	ErrInvalidLanguageCode = &NFCError{Code: ErrCodeInvalidLanguageCode, Message: "invalid language code"}
	ErrEmptyPayload        = &NFCError{Code: ErrCodeEmptyPayload, Message: "empty payload"}
	ErrTruncatedPayload    = &NFCError{Code: ErrCodeTruncatedPayload, Message: "truncated payload"}
	ErrInvalidNdefMessage  = &NFCError{Code: ErrCodeInvalidNdefMessage, Message: "invalid NDEF message"}
	ErrConnectionFailed    = &NFCError{Code: ErrCodeConnectionFailed, Message: "connection failed"}
	ErrTagReadOnly         = &NFCError{Code: ErrCodeTagReadOnly, Message: "tag is read-only"}
	ErrWriteFailed         = &NFCError{Code: ErrCodeWriteFailed, Message: "write failed"}
	ErrNoNdefMessage       = &NFCError{Code: ErrCodeNoNdefMessage, Message: "no NDEF message"}
	ErrCapacityExceeded    = &NFCError{Code: ErrCodeCapacityExceeded, Message: "message exceeds tag capacity"}
	ErrLockFailed          = &NFCError{Code: ErrCodeLockFailed, Message: "lock failed"}
	ErrLockNotConfirmed    = &NFCError{Code: ErrCodeLockNotConfirmed, Message: "lock not confirmed"}
	ErrNotSupported        = &NFCError{Code: ErrCodeNotSupported, Message: "operation not supported"}
)

// NFCError provides structured error information for programmatic handling.
type NFCError struct {
	Code    ErrorCode
	Op      string // Operation that failed (e.g., "WriteText", "Connect")
	TagUID  string // Optional: UID of tag involved
	Message string // Human-readable message
	Cause   error  // Underlying error
}

func (e *NFCError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	if e.TagUID != "" {
		sb.WriteString(" (tag ")
		sb.WriteString(e.TagUID)
		sb.WriteString(")")
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *NFCError) Unwrap() error {
	return e.Cause
}

func (e *NFCError) Is(target error) bool {
	if t, ok := target.(*NFCError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithTag returns a copy of the error annotated with a tag UID.
func (e *NFCError) WithTag(uid string) *NFCError {
	c := *e
	c.TagUID = uid
	return &c
}

// NewNotSupportedError creates an error for unsupported operations.
func NewNotSupportedError(op string) *NFCError {
	return &NFCError{
		Code:    ErrCodeNotSupported,
		Op:      op,
		Message: "operation not supported",
	}
}

// NewConnectionError creates an error for a tag that could not be reached,
// typically because it left the field.
func NewConnectionError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeConnectionFailed,
		Op:      op,
		Message: "connection failed",
		Cause:   cause,
	}
}

// NewWriteError creates an error for write failures.
func NewWriteError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeWriteFailed,
		Op:      op,
		Message: "write failed",
		Cause:   cause,
	}
}

// NewLockError creates an error for a make-read-only failure.
func NewLockError(op string, cause error) *NFCError {
	return &NFCError{
		Code:    ErrCodeLockFailed,
		Op:      op,
		Message: "lock failed",
		Cause:   cause,
	}
}

// IsReadOnlyError checks if an error indicates a write-protected tag.
func IsReadOnlyError(err error) bool {
	return GetErrorCode(err) == ErrCodeTagReadOnly
}

// IsConnectionError checks if an error indicates the tag could not be reached.
func IsConnectionError(err error) bool {
	return GetErrorCode(err) == ErrCodeConnectionFailed
}

// IsNotSupportedError checks if an error indicates an unsupported operation.
func IsNotSupportedError(err error) bool {
	return GetErrorCode(err) == ErrCodeNotSupported
}

// GetErrorCode extracts the ErrorCode from an error if it's an NFCError.
// Returns 0 if the error is not an NFCError.
func GetErrorCode(err error) ErrorCode {
	var nfcErr *NFCError
	if errors.As(err, &nfcErr) {
		return nfcErr.Code
	}
	return 0
}

// WrapError wraps an existing error with NFC context.
func WrapError(code ErrorCode, op, message string, cause error) *NFCError {
	return &NFCError{
		Code:    code,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// Errorf creates an NFCError with a formatted message.
func Errorf(code ErrorCode, op, format string, args ...interface{}) *NFCError {
	return &NFCError{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}
