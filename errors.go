package cbm

import "errors"

var (
	// ErrUnknownFamily is returned for a classifier family outside the closed set.
	ErrUnknownFamily = errors.New("cbm: unknown classifier family")

	// ErrClassifierMismatch is returned when a classifier's concrete type
	// cannot be trained by its configured family.
	ErrClassifierMismatch = errors.New("cbm: classifier does not match its family")

	// ErrZeroExpectedUtility is returned when a data point's expected utility
	// Σ_c P[n][c]·S[n][c] is zero or not finite under ZeroUtilityFail.
	ErrZeroExpectedUtility = errors.New("cbm: zero expected utility")

	// ErrNoData is returned when training is asked to fit an empty data set.
	ErrNoData = errors.New("cbm: no data points")

	ErrInvalidConfig = errors.New("cbm: invalid configuration")
	ErrShapeMismatch = errors.New("cbm: model and data set shapes differ")
	ErrInvalidScore  = errors.New("cbm: utility score must be finite and non-negative")
)
