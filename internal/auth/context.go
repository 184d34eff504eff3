package auth

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches a validated session to the request context.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, &sess)
}

// SessionFromContext extracts the validated session, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	v, ok := ctx.Value(sessionContextKey{}).(*Session)
	if !ok || v == nil {
		return Session{}, false
	}
	return *v, true
}

// AdminFromContext returns the admin identity when the context carries an
// admin session.
func AdminFromContext(ctx context.Context) (*AdminUser, bool) {
	sess, ok := SessionFromContext(ctx)
	if !ok || sess.Kind != KindAdmin || sess.Admin == nil {
		return nil, false
	}
	return sess.Admin, true
}
