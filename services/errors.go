package services

import (
	"errors"
)

// Business-rule errors returned to callers as typed failures. Handlers map
// these to HTTP statuses; anything else is treated as an infrastructure error.
var (
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrEventNotOpen        = errors.New("event not open")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrAlreadyUsed         = errors.New("already used")
	ErrExpired             = errors.New("expired")
	ErrInvalidTarget       = errors.New("invalid target")
	ErrValidationFailed    = errors.New("validation failed")
)
