package entity

import "errors"

// Domain errors for study aggregates. Adapters translate these once at
// their boundary (HTTP status codes, pg error codes).
var (
	ErrDeckNotFound           = errors.New("deck not found")
	ErrCardNotFound           = errors.New("card not found")
	ErrSchedulerStateNotFound = errors.New("card scheduler state not found")
	ErrSessionNotFound        = errors.New("study session not found")
	ErrImportJobNotFound      = errors.New("import job not found")

	ErrNotDeckOwner    = errors.New("deck belongs to another user")
	ErrNotSessionOwner = errors.New("study session belongs to another user")

	ErrInvalidReviewResponse = errors.New("invalid review response")
	ErrInvalidCardText       = errors.New("card front and back must not be empty")
	ErrInvalidImportFormat   = errors.New("unsupported import format")
	ErrInvalidImportContent  = errors.New("no valid cards found in import content")

	ErrSessionAlreadyEnded = errors.New("study session already ended")
	ErrDuplicateCardFront  = errors.New("card front already exists in deck")
)
