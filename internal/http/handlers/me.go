package handlers

import (
	"net/http"
	"time"

	httpx "github.com/qaaqit/qaaq-auth/internal/http"
	"github.com/qaaqit/qaaq-auth/internal/http/middlewares"
)

// meResponse expone la identidad resuelta del request.
// Solo campos que el cliente puede ver; el hash de password jamás sale de acá.
type meResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Name          string     `json:"name,omitempty"`
	Rank          string     `json:"maritime_rank,omitempty"`
	ShipName      string     `json:"ship_name,omitempty"`
	City          string     `json:"city,omitempty"`
	AuthMethod    string     `json:"auth_method"`
	FromCache     bool       `json:"from_cache"`
	ResolvedAt    time.Time  `json:"resolved_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	EmailVerified bool       `json:"email_verified"`
}

// NewMeHandler retorna la identidad canónica publicada por el Session Bridge.
// Asume RequireResolved en la cadena: si llegamos acá, hay usuario.
func NewMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo GET")
			return
		}

		ac := middlewares.GetAuth(r.Context())
		if !ac.Authenticated || ac.Identity.User == nil {
			// RequireResolved debería haber cortado antes; esto es el cinturón
			httpx.WriteUnauthenticated(w)
			return
		}

		u := ac.Identity.User
		httpx.WriteJSON(w, http.StatusOK, meResponse{
			ID:            u.ID,
			Email:         u.Email,
			Phone:         u.Phone,
			Name:          u.Name,
			Rank:          u.Rank,
			ShipName:      u.ShipName,
			City:          u.City,
			AuthMethod:    string(ac.Identity.Method),
			FromCache:     ac.FromCache,
			ResolvedAt:    ac.Identity.ResolvedAt,
			LastLoginAt:   u.LastLoginAt,
			EmailVerified: u.EmailVerified,
		})
	}
}
