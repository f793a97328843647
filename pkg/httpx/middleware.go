package httpx

import (
	"context"
	"net/http"
)

// Middleware is a standard net/http middleware.
type Middleware = func(http.Handler) http.Handler

// Chain wraps h with the given middlewares; the first middleware in the
// list is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type ctxKey int

const (
	ctxKeyUserID ctxKey = iota
	ctxKeyEmail
	ctxKeySessionID
	ctxKeyOrgID
)

// ContextWithIdentity stores the authenticated caller's identity for
// downstream handlers.
func ContextWithIdentity(ctx context.Context, userID, email, sessionID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUserID, userID)
	ctx = context.WithValue(ctx, ctxKeyEmail, email)
	ctx = context.WithValue(ctx, ctxKeySessionID, sessionID)
	return ctx
}

// ContextWithOrg stores the tenant selected by the request.
func ContextWithOrg(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, ctxKeyOrgID, orgID)
}

func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserID).(string)
	return v
}

func EmailFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyEmail).(string)
	return v
}

func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySessionID).(string)
	return v
}

func OrgIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyOrgID).(string)
	return v
}
