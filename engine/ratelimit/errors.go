package ratelimit

import "errors"

var (
	// ErrQuotaExceeded is carried by rejected decisions.
	ErrQuotaExceeded = errors.New("ratelimit: quota exceeded")
	// ErrStoreUnavailable reports a counter store fault or timeout. The
	// accompanying decision is marked degraded so callers can fail open.
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")
)
