package actor

import (
	"context"
	"errors"
)

// Key for actor identity values in context
type contextKey string

const (
	userIDKey     contextKey = "userID"
	requestIDKey  contextKey = "requestID"
	clientInfoKey contextKey = "clientInfo"
)

// ErrUserIDNotFound is returned when no user ID is found in context
var ErrUserIDNotFound = errors.New("user ID not found in context")

// WithUserID adds the acting user's ID to the context
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the acting user's ID from the context
func UserIDFromContext(ctx context.Context) (uint, error) {
	userID, ok := ctx.Value(userIDKey).(uint)
	if !ok {
		return 0, ErrUserIDNotFound
	}
	return userID, nil
}

// UserIDOrNil returns a pointer to the acting user's ID, or nil when the
// operation has no authenticated actor (API submissions, background jobs).
func UserIDOrNil(ctx context.Context) *uint {
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		return nil
	}
	return &userID
}

// ErrNoRequestIDInContext is returned when no request ID is found in context
var ErrNoRequestIDInContext = errors.New("no request ID found in context")

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from the context
func RequestIDFromContext(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}

// ClientInfo carries the caller's network identity for audit events.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// WithClientInfo adds the caller's IP address and user agent to the context
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey, info)
}

// ClientInfoFromContext extracts the caller's network identity, if present
func ClientInfoFromContext(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey).(ClientInfo)
	return info
}
