// Package common provides shared utilities and types used across the application.
package common

import "errors"

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Message source errors.
	ErrMessageStoreUnavailable = errors.New("message store unavailable")

	// Configuration errors.
	ErrNoPatternFile = errors.New("pattern file not found")
	ErrInvalidConfig = errors.New("invalid configuration")
)
