// internal/app/features/admin/routes.go
package admin

import (
	"github.com/go-chi/chi/v5"
	"github.com/mindmatrix/cohorthub/internal/app/features/shared"
)

// Routes returns the admin API subrouter, guarded by the admin token.
// Typically: r.Mount("/admin", admin.Routes(h, token))
func Routes(h *Handler, token string) chi.Router {
	r := chi.NewRouter()
	r.Use(shared.RequireToken(token))

	r.Get("/stats", h.HandleStats)
	r.Post("/force-verify", h.HandleForceVerify)
	r.Post("/unverify", h.HandleUnverify)
	r.Get("/lookup", h.HandleLookup)

	r.Get("/students", h.HandleListStudents)
	r.Post("/students", h.HandleAddStudent)
	r.Post("/students/import", h.HandleImportStudents)

	r.Post("/broadcast", h.HandleBroadcast)

	return r
}
