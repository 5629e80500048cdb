package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/qaaqit/qaaq-auth/internal/audit"
	"github.com/qaaqit/qaaq-auth/internal/domain/repository"
	httpx "github.com/qaaqit/qaaq-auth/internal/http"
	"github.com/qaaqit/qaaq-auth/internal/observability/logger"
	"github.com/qaaqit/qaaq-auth/internal/resolver"
)

type credentialCheckRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type credentialCheckResponse struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id"`
}

// NewCredentialCheckHandler verifica credenciales del flujo legacy de login.
// El identifier pasa por el resolver (id, email o teléfono); el fallo es el
// mismo 401 uniforme para usuario inexistente, cuenta sin password y password
// incorrecto.
// POST /v1/auth/verify
func NewCredentialCheckHandler(users repository.UserRepository, res *resolver.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "solo POST")
			return
		}

		var req credentialCheckRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "body inválido")
			return
		}
		if req.Identifier == "" || req.Password == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "identifier y password requeridos")
			return
		}

		u, err := res.Resolve(r.Context(), req.Identifier, resolver.HintSession)
		if err != nil {
			httpx.WriteUnauthenticated(w)
			return
		}
		if !users.CheckPassword(u.PasswordHash, req.Password) {
			httpx.WriteUnauthenticated(w)
			return
		}

		audit.Log(r.Context(), audit.EventCredentialOK, logger.UserID(u.ID))
		httpx.WriteJSON(w, http.StatusOK, credentialCheckResponse{Valid: true, UserID: u.ID})
	}
}
