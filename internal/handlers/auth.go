package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthService определяет методы регистрации и входа
type AuthService interface {
	Register(ctx context.Context, login, password, fullName string) (string, error)
	Login(ctx context.Context, login, password string) (string, error)
	Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

type AuthHandler struct {
	authService AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

type authRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Register godoc
// @Summary Register a customer
// @Tags user
// @Accept json
// @Param request body authRequest true "Credentials"
// @Success 200 "Token in the Authorization header"
// @Failure 400,409 {object} errorResponse
// @Router /api/user/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "malformed JSON body")
		return
	}

	token, err := h.authService.Register(r.Context(), req.Login, req.Password, req.FullName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}

// Login godoc
// @Summary Log in
// @Tags user
// @Accept json
// @Param request body authRequest true "Credentials"
// @Success 200 "Token in the Authorization header"
// @Failure 401 {object} errorResponse
// @Router /api/user/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, h.logger, "malformed JSON body")
		return
	}

	token, err := h.authService.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	w.WriteHeader(http.StatusOK)
}

// Profile godoc
// @Summary Current user with balance
// @Tags user
// @Produce json
// @Security Bearer
// @Success 200 {object} domain.User
// @Router /api/user/profile [get]
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.authService.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, user)
}
