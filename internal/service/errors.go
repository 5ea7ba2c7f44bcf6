package service

import (
	"errors"
	"fmt"
)

// ErrValidation wraps every error caused by missing or malformed input.
var ErrValidation = errors.New("validation failed")

var (
	ErrEmptyURL      = fmt.Errorf("%w: URL is required", ErrValidation)
	ErrEmptyShortID  = fmt.Errorf("%w: short_id is required", ErrValidation)
	ErrInvalidStatus = fmt.Errorf("%w: unknown status", ErrValidation)
)

var (
	// ErrInvalidAPIKey is returned when the apikey does not match the token
	// of the tenant named by the request type.
	ErrInvalidAPIKey = errors.New("token is invalid")

	ErrLinkNotFound = errors.New("link not found")

	// ErrIdentityMissing is returned by Redirect when no visitor id reached it.
	ErrIdentityMissing = errors.New("visitor identity missing")

	ErrGenerateID = errors.New("failed to generate short id")
)
