package weather

import "errors"

var (
	// ErrInvalidInput is returned for malformed or empty series and requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPreconditionFailed is returned when a forecast is requested or
	// stored without the historical series it must derive from.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInsufficientData is returned when too few usable points remain for a fit.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNumericalFailure is returned when the model fit does not converge.
	ErrNumericalFailure = errors.New("numerical failure")

	// ErrFetchFailed is returned when no provider could deliver the series.
	ErrFetchFailed = errors.New("historical data fetch failed")
)
