package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
	ErrUpstreamMalformed     = errors.New("upstream malformed response")
	ErrPersistence           = errors.New("persistence failure")
	ErrCycleInProgress       = errors.New("settlement cycle already in progress")
)
