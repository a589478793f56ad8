package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the browser session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the browser session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Flash queues a message on the browser session carried by ctx.
func Flash(ctx context.Context, kind, message string) {
	if sess := SessionFromContext(ctx); sess != nil {
		sess.AddFlash(FlashMessage{Kind: kind, Message: message})
	}
}

// PopFlash takes the oldest queued message from the session carried by ctx.
func PopFlash(ctx context.Context) *FlashMessage {
	if sess := SessionFromContext(ctx); sess != nil {
		return sess.PopFlash()
	}
	return nil
}
