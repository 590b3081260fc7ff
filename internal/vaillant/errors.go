package vaillant

import "errors"

// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuthentication is returned when the API rejects the credentials or
	// the session expired and could not be renewed.
	ErrAuthentication = errors.New("vaillant: authentication failed")

	// ErrNoFacility is returned when the account has no facility or the
	// configured serial is not among them.
	ErrNoFacility = errors.New("vaillant: no facility found")

	// ErrUnexpectedStatus is returned for any non 2xx response other than 401.
	ErrUnexpectedStatus = errors.New("vaillant: unexpected response status")
)
