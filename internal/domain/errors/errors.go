package errors

import "errors"

// Sentinel errors for callers to classify onboarding outcomes with errors.Is.
var (
	ErrConfigMissing    = errors.New("welcome thread channel is not configured")
	ErrChannelNotFound  = errors.New("welcome channel not found")
	ErrCapacityExceeded = errors.New("active welcome thread cap reached")
	ErrAlreadyActive    = errors.New("member already has an active welcome thread")
	ErrDuplicatePending = errors.New("welcome thread creation already pending")
	ErrProviderFailed   = errors.New("chat provider operation failed")
)
