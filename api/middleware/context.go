package middleware

import "context"

type contextKey string

const ctxUserID contextKey = "user_id"

// WithUserID records the authenticated user's id on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// UserIDFromContext returns the authenticated user's id, or empty when the
// request never passed the auth middleware.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userID, _ := ctx.Value(ctxUserID).(string)
	return userID
}
