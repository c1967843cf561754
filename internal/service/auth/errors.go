package auth

import "errors"

// Sentinel errors returned by token validation. Callers branch on these with
// errors.Is to choose an HTTP status without inspecting the underlying JWT
// library failure.
var (
	// ErrInvalidToken covers malformed access tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken is returned for an access token past its expiry.
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid is returned for an access token whose NotBefore
	// time is still in the future.
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrWrongTokenType is returned when a refresh token is presented where
	// an access token is expected, or the other way around.
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrExpiredRefreshToken is returned for a refresh token past its expiry.
	ErrExpiredRefreshToken = errors.New("refresh token has expired")

	// ErrInvalidRefreshToken covers malformed refresh tokens and signature
	// mismatches.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)
