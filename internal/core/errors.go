package core

import "errors"

var (
	// ErrSessionNotFound is returned for an unknown or evicted file id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidTransition is returned when an operation does not apply to
	// the file's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAttemptsExhausted is returned once a file has used every
	// correction attempt and was moved to manual handling.
	ErrAttemptsExhausted = errors.New("correction attempts exhausted")

	// ErrTooManyFiles is returned when every processing slot stays busy
	// for longer than the configured wait.
	ErrTooManyFiles = errors.New("too many files in progress, please try again later")

	// ErrFileTooLarge is returned for uploads above the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("empty file")
)
