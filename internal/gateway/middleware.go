package gateway

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/shared"
)

type workspaceContextKey struct{}

// ContextWithWorkspace stores ws in ctx.
func ContextWithWorkspace(ctx context.Context, ws *Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey{}, ws)
}

// FromContext returns the workspace attached to ctx, if any.
func FromContext(ctx context.Context) *Workspace {
	ws, _ := ctx.Value(workspaceContextKey{}).(*Workspace)
	return ws
}

// Middleware attaches the workspace of the current browser session. It must
// run after the browser session has been loaded.
func (r *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sess := shared.SessionFromContext(req.Context())
		if sess == nil {
			next.ServeHTTP(w, req)
			return
		}
		ws, err := r.Workspace(req.Context(), sess.ID)
		if err != nil {
			r.logger.Error("resolve workspace", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, req.WithContext(ContextWithWorkspace(req.Context(), ws)))
	})
}

// Resolve is the access guard resolver. The workspace was restored before the
// handler chain ran; an expired credential is renewed here or the user is
// treated as signed out.
func Resolve(req *http.Request) (rbac.Principal, bool) {
	ws := FromContext(req.Context())
	if ws == nil {
		return nil, false
	}
	return ws.Store.Current(req.Context())
}
