package errors

import "errors"

var (
	// ErrInvalidRequest marks input that fails structural validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInstanceNotFound is returned when no instance has the id.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrInstanceNotYetActive is returned when an instance is redeemed
	// before its start date. The instance stays intact.
	ErrInstanceNotYetActive = errors.New("instance not yet active")
	// ErrInstanceExpired is returned when an instance is redeemed after its
	// end date. The instance is removed.
	ErrInstanceExpired = errors.New("instance expired")
	// ErrCapabilityNotFound is returned when issuing against an unknown
	// catalog entry.
	ErrCapabilityNotFound = errors.New("capability not found")
	// ErrWriteConflict is returned by the store when a concurrent redemption
	// invalidated this one. Callers retry.
	ErrWriteConflict = errors.New("write conflict")
	// ErrContentionExceeded is returned after the retry budget for write
	// conflicts is spent.
	ErrContentionExceeded = errors.New("redemption contention exceeded")
)
