package cache

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrInvalidCapacity is returned by NewRequester for a capacity <= 0.
	ErrInvalidCapacity = errors.New("requester capacity must be positive")

	// ErrInvalidPolicy is returned by NewRequester for an unknown eviction policy.
	ErrInvalidPolicy = errors.New("unknown eviction policy")

	// ErrInvalidURL indicates the page URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid page url")

	// ErrUnexpectedStatus indicates the server answered with a status the
	// fetch protocol does not accept.
	ErrUnexpectedStatus = errors.New("unexpected http status")
)

// ErrorClass separates failures by where they happened.
type ErrorClass string

const (
	// ErrorClassNetwork covers DNS, connection, timeout and body read failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassStatus covers responses whose status code was not acceptable.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassRequest covers requests that could not be built.
	ErrorClassRequest ErrorClass = "request"
)

// FetchError is returned by Page.Fetch and Requester.Read.
type FetchError struct {
	URL        string
	Class      ErrorClass
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Class == ErrorClassStatus {
		return fmt.Sprintf("fetch %s: %s error (status %d): %v", e.URL, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.Class, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of a FetchError anywhere in err's chain, or ""
// if there is none.
func ClassOf(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ""
}

// StatusOf returns the HTTP status carried by a status-class FetchError, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) && fe.Class == ErrorClassStatus {
		return fe.StatusCode
	}
	return 0
}

// validateURL checks that raw is an absolute http or https URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &FetchError{URL: raw, Class: ErrorClassRequest, Err: fmt.Errorf("%w: %v", ErrInvalidURL, err)}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &FetchError{URL: raw, Class: ErrorClassRequest, Err: fmt.Errorf("%w: need absolute http(s) url", ErrInvalidURL)}
	}
	return nil
}
