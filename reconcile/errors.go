package reconcile

import "errors"

var (
	// ErrMalformed means the payload is not valid JSON or lacks a required field
	ErrMalformed = errors.New("malformed payload")
	// ErrNotFound means no local record matches the payload's identifiers
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyProcessed means the transition was applied before. It is
	// reported as success.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrInvalidTransition means the event is not legal for the record's
	// current status
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrCaptureIncomplete means the gateway answered a capture with a
	// status other than COMPLETED
	ErrCaptureIncomplete = errors.New("capture not completed")
	// ErrMismatch means the payload disagrees with the stored record
	ErrMismatch = errors.New("payload does not match record")
	// ErrUnauthorized means a direct action arrived without a valid caller
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller does not own the deposit
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidSignature means webhook signature verification failed
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
