// Package verrors provides the error taxonomy shared by every VexFS core
// component. It is a leaf package with no internal dependencies so that
// journal, lock, txn, and the higher engines can all depend on it without
// creating import cycles.
//
// Import graph: verrors <- everything else.
package verrors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Code classifies a VexError into one of the abstract kinds from the
// error-handling design. Callers switch on Code, never on message text.
type Code int

const (
	// Argument indicates a null or out-of-range input, or a malformed request.
	Argument Code = iota + 1
	// NotFound indicates a missing path, inode, transaction, subscription,
	// rule, or filter.
	NotFound
	// Permission indicates an ACL or capability check denied the operation.
	Permission
	// Conflict indicates an MVCC read/write-set clash, a duplicate name, or
	// a non-empty directory removal.
	Conflict
	// Resource indicates out-of-memory, out-of-space, pool exhaustion, or a
	// full queue.
	Resource
	// Busy indicates a contended lock that was not willing to block, or a
	// rate-limited caller.
	Busy
	// Timeout indicates an operation, transaction, subscription, or send
	// exceeded its deadline.
	Timeout
	// Corruption indicates a checksum mismatch, invalid magic, or truncated
	// record.
	Corruption
	// Unsupported indicates an unknown event type or an unimplemented code
	// path.
	Unsupported
	// TransactionFailed indicates a deadlock victim, a 2PC abort, or a full
	// journal.
	TransactionFailed
	// BoundaryUnavailable indicates the target propagation boundary is
	// isolated or was never registered.
	BoundaryUnavailable
)

// String returns the abstract kind name, as used in logs and correlation.
func (c Code) String() string {
	switch c {
	case Argument:
		return "Argument"
	case NotFound:
		return "NotFound"
	case Permission:
		return "Permission"
	case Conflict:
		return "Conflict"
	case Resource:
		return "Resource"
	case Busy:
		return "Busy"
	case Timeout:
		return "Timeout"
	case Corruption:
		return "Corruption"
	case Unsupported:
		return "Unsupported"
	case TransactionFailed:
		return "TransactionFailed"
	case BoundaryUnavailable:
		return "BoundaryUnavailable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// VexError is the single error type returned across package boundaries in
// VexFS core. Every error carries a correlation id so it can be traced
// through logs, retries, and the stats endpoints without reconstructing the
// call stack.
type VexError struct {
	Code          Code
	Message       string
	CorrelationID string
	Cause         error
}

func (e *VexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cid=%s): %v", e.Code, e.Message, e.CorrelationID, e.Cause)
	}
	return fmt.Sprintf("%s: %s (cid=%s)", e.Code, e.Message, e.CorrelationID)
}

func (e *VexError) Unwrap() error { return e.Cause }

// New builds a VexError with a fresh correlation id.
func New(code Code, message string) *VexError {
	return &VexError{Code: code, Message: message, CorrelationID: uuid.NewString()}
}

// Newf builds a VexError with a formatted message.
func Newf(code Code, format string, args ...any) *VexError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a new VexError of the given code.
func Wrap(code Code, cause error, message string) *VexError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// Is reports whether err carries the given abstract kind.
func Is(err error, code Code) bool {
	var ve *VexError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

// CodeOf extracts the Code from err, or 0 if err is not a VexError.
func CodeOf(err error) Code {
	var ve *VexError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return 0
}

// Recoverable reports whether the error's kind is eligible for bounded
// retry under the retry policy (§7): busy, resource with a hint that more
// will become available, best-effort timeouts, and boundary-unavailable for
// best-effort delivery are all recoverable from the caller's point of view.
// Argument, Permission, and Corruption are never recoverable.
func Recoverable(err error) bool {
	switch CodeOf(err) {
	case Busy, Resource, Timeout, BoundaryUnavailable:
		return true
	default:
		return false
	}
}
