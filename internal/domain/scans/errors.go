package scans

import (
	"errors"
	"strings"
)

var (
	// ErrScanCancelled aborts the remaining phases. Its text is the cancellation signature.
	ErrScanCancelled = errors.New("scan cancelled")
	// ErrPermanent marks failures that must not be retried (missing brand, malformed domain).
	ErrPermanent = errors.New("permanent failure")
	ErrNotFound  = errors.New("scan not found")
	// ErrFinished is returned when cancelling a scan that already reached a terminal status.
	ErrFinished = errors.New("scan already finished")
)

// CancelReason is stored as the scan error when a user cancels.
const CancelReason = "scan cancelled by user"

// IsCancellation recognises the cancellation signature in a persisted error message.
func IsCancellation(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "cancelled")
}

// IsCancelled reports whether err is, or carries the text of, a cancellation.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrScanCancelled) || IsCancellation(err.Error())
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// Permanent wraps err so errors.Is(err, ErrPermanent) holds.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
