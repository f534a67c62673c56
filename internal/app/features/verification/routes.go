// internal/app/features/verification/routes.go
package verification

import (
	"github.com/go-chi/chi/v5"
	"github.com/mindmatrix/cohorthub/internal/app/features/shared"
)

// Routes returns the member API subrouter, guarded by the gateway's
// shared token. Typically: r.Mount("/api", verification.Routes(h, token))
func Routes(h *Handler, token string) chi.Router {
	r := chi.NewRouter()
	r.Use(shared.RequireToken(token))

	r.Post("/verify", h.HandleVerify)
	r.Post("/otp", h.HandleOTP)
	r.Post("/reverify", h.HandleReverify)
	r.Get("/help", h.HandleHelp)

	return r
}
