package gateway

import (
	"net/http"

	"github.com/propertyhub/propertyhub/internal/shared"
	"github.com/propertyhub/propertyhub/internal/view"
)

// Page assembles the template data shared by every page: CSRF token, the
// pending flash message and, when signed in, identity and navigation.
func Page(r *http.Request, csrf *shared.CSRFManager, title string, data any) view.TemplateData {
	ctx := r.Context()
	td := view.TemplateData{
		Title:       title,
		CSRFToken:   csrf.EnsureToken(shared.SessionFromContext(ctx)),
		Flash:       shared.PopFlash(ctx),
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	ws := FromContext(ctx)
	if ws == nil {
		return td
	}
	td.Gate = ws.Gate
	if identity, ok := ws.Store.Identity(); ok {
		td.Identity = &identity
		td.FullName = ws.Store.FullName()
		td.Nav = ws.Store.Navigation()
	}
	return td
}
