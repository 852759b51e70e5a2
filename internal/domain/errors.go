package domain

import "errors"

var (
	// ErrAuth: bearer credential missing, malformed or rejected.
	ErrAuth = errors.New("invalid authentication token")
	// ErrUnsupportedMedia: submitted document is not a PDF.
	ErrUnsupportedMedia = errors.New("file must be a PDF")
	ErrNotFound         = errors.New("not found")
	// ErrNotReady: solve requested before extraction completed.
	ErrNotReady = errors.New("problem not ready for solving")
	// ErrConflict: operation refused because other entities depend on the target.
	ErrConflict = errors.New("conflict")
	// ErrProcessingFailed: extraction or solving reached the failed state.
	ErrProcessingFailed = errors.New("processing failed")
	// ErrStatusConflict is returned by CompareAndTransition when the stored
	// status no longer matches the expected one.
	ErrStatusConflict  = errors.New("status changed concurrently")
	ErrInvalidArgument = errors.New("invalid argument")
)
