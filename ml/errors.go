package ml

import "errors"

var (
	// ErrArtifactUnavailable marks a model or scaler artifact that is missing or cannot be decoded.
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	// ErrInvalidInput marks a feature vector with the wrong shape or non-numeric values.
	ErrInvalidInput = errors.New("invalid input features")
	// ErrInferenceFailure marks a failure while scaling or running the model.
	ErrInferenceFailure = errors.New("inference failure")
)
