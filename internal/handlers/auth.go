package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kumudkode/lms-apiserver/internal/logging"
	"github.com/kumudkode/lms-apiserver/internal/services"
	"github.com/kumudkode/lms-apiserver/internal/store"
	"github.com/kumudkode/lms-apiserver/types"
)

// invalidCredentialsMessage is returned for both an unknown email and a
// wrong password so the response carries no account-enumeration signal.
const invalidCredentialsMessage = "Invalid email or password"

// AuthHandler provides registration, login, and session introspection.
type AuthHandler struct {
	userService *services.UserService
	credentials *services.CredentialService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, credentials *services.CredentialService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		credentials: credentials,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, credentials *services.CredentialService) {
	handler := NewAuthHandler(userService, credentials)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces a valid bearer token and injects the session claims
// into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return RequireAuth(h.credentials)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(credentials *services.CredentialService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := credentials.ParseToken(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := contextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates a new user account and returns a session token.
// Registration logs the new user in: the response shape matches Login.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Role = strings.TrimSpace(req.Role)
	if req.Email == "" || req.Password == "" || req.FirstName == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if !types.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	hashed, err := h.credentials.HashPassword(req.Password)
	if err != nil {
		logging.Error().Err(err).Msg("hash password")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	// No existence pre-check: the unique index on email is the authority,
	// so two concurrent registrations cannot both succeed.
	user, err := h.userService.Create(r.Context(), types.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		logging.Error().Err(err).Msg("create user")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := h.credentials.IssueToken(user)
	if err != nil {
		logging.Error().Err(err).Msg("issue token")
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Success: true, Token: token, User: user})
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, invalidCredentialsMessage)
			return
		}
		logging.Error().Err(err).Msg("look up user")
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	if !h.credentials.VerifyPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusBadRequest, invalidCredentialsMessage)
		return
	}

	token, err := h.credentials.IssueToken(user)
	if err != nil {
		logging.Error().Err(err).Msg("issue token")
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Token: token, User: user})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		logging.Error().Err(err).Msg("load user")
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{User: user})
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both Register and Login.
type AuthResponse struct {
	Success bool       `json:"success"`
	Token   string     `json:"token"`
	User    types.User `json:"user"`
}

// MeResponse wraps the current user.
type MeResponse struct {
	User types.User `json:"user"`
}
