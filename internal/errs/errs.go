package errs

import (
	"errors"
	"fmt"
)

// Доменные сентинель-ошибки для маппинга в HTTP коды в handlers.
// Callers wrap them with context (fmt.Errorf("%w: ...")) and match with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrPermission      = errors.New("permission denied")
	ErrSessionNotFound = errors.New("session not found")

	// Both are validation-class: errors.Is(err, ErrValidation) holds for them.
	ErrSessionNotLive    = fmt.Errorf("%w: session is not live", ErrValidation)
	ErrRoomNotConfigured = fmt.Errorf("%w: room not configured", ErrValidation)

	ErrConfiguration       = errors.New("room provider is not configured")
	ErrUpstreamUnavailable = errors.New("room provider is unreachable")
	ErrCreationFailed      = errors.New("session creation failed")
)
