package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownView is returned when a view id is not in the registry.
	ErrUnknownView = errors.New("unknown view")
	// ErrMalformedRecord marks a geodata element that cannot become a point.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrNotFetchable is returned when points are requested for a view that has none.
	ErrNotFetchable = errors.New("view is not fetchable")

	ErrNetwork = errors.New("network error")
	ErrService = errors.New("service error")
	ErrParse   = errors.New("parse error")
)

// FetchErrorKind classifies a recoverable fetch failure.
type FetchErrorKind string

const (
	KindNetwork FetchErrorKind = "network_error"
	KindService FetchErrorKind = "service_error"
	KindParse   FetchErrorKind = "parse_error"
)

// FetchError is a recoverable failure of a geodata search.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is match the kind sentinels.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrService:
		return e.Kind == KindService
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *FetchError {
	return &FetchError{Kind: KindNetwork, Err: err}
}

// NewServiceError wraps a non-success response.
func NewServiceError(status int, err error) *FetchError {
	return &FetchError{Kind: KindService, StatusCode: status, Err: err}
}

// NewParseError wraps an unparseable payload.
func NewParseError(err error) *FetchError {
	return &FetchError{Kind: KindParse, Err: err}
}

// AsFetchError unwraps err into a *FetchError.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
