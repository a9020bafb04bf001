package router

// Error codes carried in problem responses.
const (
	ErrInternalCode           = "INTERNAL_ERROR"
	ErrBadRequestCode         = "BAD_REQUEST"
	ErrNotFoundCode           = "NOT_FOUND"
	ErrServiceUnavailableCode = "SERVICE_UNAVAILABLE"
	ErrInvalidEventCode       = "invalid_event"
	ErrInvalidUserContextCode = "invalid_user_context"
)

// Error messages
const (
	ErrMsgAppStateNotInitialized = "application state not initialized"
)
