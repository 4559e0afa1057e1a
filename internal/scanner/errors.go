// internal/scanner/errors.go
package scanner

import "errors"

// ErrorCode is the stable machine-readable code attached to session errors
type ErrorCode string

const (
	CodeCooldownActive      ErrorCode = "COOLDOWN_ACTIVE"
	CodeScanCancelled       ErrorCode = "SCAN_CANCELLED"
	CodeScanTimeout         ErrorCode = "SCAN_TIMEOUT"
	CodeScanError           ErrorCode = "SCAN_ERROR"
	CodeNoScannersAvailable ErrorCode = "NO_SCANNERS_AVAILABLE"
)

// Error is a session-lifecycle error with a stable code
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Sentinel errors for every session-lifecycle failure. Compared with
// errors.Is; handlers map them onto HTTP status codes.
var (
	ErrCooldownActive      = &Error{Code: CodeCooldownActive, Message: "scan requested within cooldown window"}
	ErrScanCancelled       = &Error{Code: CodeScanCancelled, Message: "scan cancelled"}
	ErrScanTimeout         = &Error{Code: CodeScanTimeout, Message: "no scan result before deadline"}
	ErrScanError           = &Error{Code: CodeScanError, Message: "selected scanner is not usable"}
	ErrNoScannersAvailable = &Error{Code: CodeNoScannersAvailable, Message: "no scanners available"}
)

// CodeOf extracts the error code from a session error, or empty for
// transport and collaborator errors passed through unchanged.
func CodeOf(err error) ErrorCode {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
