package models

import "errors"

// Domain errors shared by the registry, queue and trigger engine.
//
// Callers wrap them with context and match with errors.Is:
//
//	if errors.Is(err, models.ErrNotFound) {
//	    // 404
//	}
var (
	// ErrNotFound is returned when a device, command, link or space does not exist in the caller's scope
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed payloads
	ErrValidation = errors.New("validation error")

	// ErrConflict is returned when a link was modified concurrently
	ErrConflict = errors.New("concurrent modification")

	// ErrUpstreamGeneration is returned when the automation source fails or returns unparsable output
	ErrUpstreamGeneration = errors.New("automation source failed")

	// ErrUnauthorized is returned for missing or invalid credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller may see a resource but not change it
	ErrForbidden = errors.New("forbidden")
)
