package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrMissingURI    = fmt.Errorf("tracking URI not provided")

	// Source tracking API errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrExperimentNotFound = fmt.Errorf("experiment not found")
	ErrRunFetch           = fmt.Errorf("run fetch failed")

	// Destination store errors
	ErrRecordNotFound = fmt.Errorf("record not found")
	ErrCommit         = fmt.Errorf("record commit failed")

	// Run cache errors
	ErrCachePersist = fmt.Errorf("run cache persist failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
