package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"chainarb/internal/api/middleware"
	"chainarb/internal/config"
	"chainarb/pkg/crypto"
	"chainarb/pkg/utils"
)

// AuthHandler выпускает операторские токены
//
// Единственный пользователь системы - оператор: логин сводится к
// проверке пароля против bcrypt-хеша из окружения. Никакого user CRUD.
type AuthHandler struct {
	security config.SecurityConfig
	logger   *utils.Logger
}

// NewAuthHandler создает новый AuthHandler
func NewAuthHandler(security config.SecurityConfig, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{
		security: security,
		logger:   logger.WithComponent("api.auth"),
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login проверяет пароль оператора и выдает JWT
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.security.AdminPasswordHash == "" {
		// Хеш не сконфигурирован - логин невозможен, а не открыт настежь
		writeError(w, http.StatusForbidden, "operator login is not configured")
		return
	}

	if err := crypto.VerifyPassword(req.Password, h.security.AdminPasswordHash); err != nil {
		h.logger.Warn("неудачная попытка входа", utils.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := middleware.IssueToken(h.security.JWTSecret, h.security.TokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.security.TokenTTL),
	})
}
