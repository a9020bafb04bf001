package cache

import "errors"

var (
	// ErrStoreUnavailable reports a store fault or timeout. Callers treat it
	// as a miss.
	ErrStoreUnavailable = errors.New("cache: store unavailable")
	// ErrTenantRequired guards personalized AI responses from being cached
	// under a shared key.
	ErrTenantRequired = errors.New("cache: user id required for personalized entry")
	ErrInvalidKey     = errors.New("cache: key is invalid")
	ErrUnknownEvent   = errors.New("cache: unknown state-change event")
)
