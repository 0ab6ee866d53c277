package ports

import "errors"

// Application-level errors. Adapters wrap infrastructure failures with one of
// these so callers can branch with errors.Is.
var (
	// provider returned no data for a symbol; the symbol is skipped
	ErrDataUnavailable = errors.New("data unavailable")
	// not enough bars for a windowed indicator
	ErrComputationSkipped = errors.New("computation skipped: insufficient data")
	// a proposed trade failed a risk check
	ErrValidationFailure = errors.New("validation failure")
	// referenced recommendation or order id does not exist
	ErrNotFound = errors.New("resource not found")
	// an external provider call failed
	ErrProviderFailure = errors.New("provider failure")
	// invalid or missing configuration, fatal at startup
	ErrConfiguration = errors.New("invalid or missing configuration")
)
