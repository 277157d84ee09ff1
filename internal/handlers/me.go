package handlers

import (
	"net/http"

	"github.com/calebmartin/corkboard/internal/auth"
	pkghttp "github.com/calebmartin/corkboard/pkg/http"
)

// Me returns the public projection of the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	user, err := h.service.GetUser(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userEnvelope{User: user})
}
