package api

import (
	"context"
)

type keyType string

const (
	sessionIDKey keyType = "sessionID"
	csrfTokenKey keyType = "csrfToken"
)

// ctxWithSessionID adds the session's stable id to the context
func ctxWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// ctxWithCSRFToken adds the token issued for this request to the context
func ctxWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenKey, token)
}

// ctxGetSessionID returns the session id, or "" when none was established
func ctxGetSessionID(ctx context.Context) string {
	return ctxGetStringValue(ctx, sessionIDKey)
}

func ctxGetCSRFToken(ctx context.Context) string {
	return ctxGetStringValue(ctx, csrfTokenKey)
}

func ctxGetStringValue(ctx context.Context, key keyType) string {
	value, _ := ctx.Value(key).(string)
	return value
}
