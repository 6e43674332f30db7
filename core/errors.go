package core

import "errors"

var (
	ErrInvalidAddress    = errors.New("invalid ethereum address")
	ErrInvalidSignature  = errors.New("invalid signature encoding")
	ErrSignatureMismatch = errors.New("signature does not match address")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge has expired")
	ErrRefreshFailed     = errors.New("refresh token is invalid or expired")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrStoreFailure      = errors.New("store operation failed")
)

// Wire codes surfaced in error responses. Validation failures map to 400,
// auth and refresh failures to 401, rate limiting to 429.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeChallengeNotFound = "CHALLENGE_NOT_FOUND"
	CodeChallengeExpired  = "CHALLENGE_EXPIRED"
	CodeSignatureMismatch = "SIGNATURE_MISMATCH"
	CodeRefreshFailed     = "REFRESH_FAILED"
	CodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeUnauthorized      = "AUTH_REQUIRED"
)

// CodeFor maps a domain error to its wire code. Unknown errors are reported
// as internal so nothing leaks to the client.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrInvalidSignature):
		return CodeValidation
	case errors.Is(err, ErrChallengeNotFound):
		return CodeChallengeNotFound
	case errors.Is(err, ErrChallengeExpired):
		return CodeChallengeExpired
	case errors.Is(err, ErrSignatureMismatch):
		return CodeSignatureMismatch
	case errors.Is(err, ErrRefreshFailed):
		return CodeRefreshFailed
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}
