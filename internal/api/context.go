package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/fmuoria/agent-studio/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext extracts the caller's session from ctx
func SessionFromContext(ctx context.Context) *session.Session {
	sess, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

func contextWithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
