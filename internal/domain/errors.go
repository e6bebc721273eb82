package domain

import "errors"

// Sentinel errors shared by the onboarding use cases and their adapters.
var (
	// ErrRetrieval is returned when the candidate source is unreachable or times out.
	ErrRetrieval = errors.New("candidate retrieval failed")

	// ErrGeneration is returned when too few distinct candidates were fetched to build a batch.
	ErrGeneration = errors.New("batch generation failed")

	// ErrNotFound is returned for an unknown batch or assignment.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when an assignment belongs to another user.
	ErrForbidden = errors.New("assignment owned by another user")

	// ErrValidation is returned for malformed input such as an unknown decision.
	ErrValidation = errors.New("validation failed")
)
