package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskdeck/apiserver/internal/auth"
	"github.com/taskdeck/apiserver/internal/services"
	"github.com/taskdeck/apiserver/internal/storage"
	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
)

// AuthHandler provides the authentication and profile endpoints, plus
// the middleware guard chain used by every protected route.
type AuthHandler struct {
	userService  *services.UserService
	tokenService *auth.TokenService
	storage      *storage.Storage
	logger       *slog.Logger
}

// NewAuthHandler constructs an AuthHandler. storage may be nil when no
// object storage backend is configured; upload grants then return 503.
func NewAuthHandler(userService *services.UserService, tokenService *auth.TokenService, store *storage.Storage, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		tokenService: tokenService,
		storage:      store,
		logger:       logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)

	r.Group(func(r chi.Router) {
		r.Use(handler.Authenticate)
		r.Post("/logout", handler.Logout)
		r.Post("/logout-all", handler.LogoutAll)
		r.Get("/sessions", handler.Sessions)

		r.Group(func(r chi.Router) {
			r.Use(handler.RequireActive)
			r.Get("/me", handler.Me)
			r.Put("/profile", handler.UpdateProfile)
			r.Post("/profile/upload-url", handler.UploadURL)
		})
	})
}

// Authenticate verifies the bearer token and resolves it to a user.
// Every failure mode, including a subject that no longer resolves to a
// user row, collapses to the same 401 so a caller cannot tell token
// validity apart from account existence.
func (h *AuthHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeAuthError(w, "could not validate credentials")
			return
		}

		identity, err := h.tokenService.Verify(r.Context(), tokenString)
		if err != nil {
			writeAuthError(w, "could not validate credentials")
			return
		}

		user, err := h.userService.GetByID(r.Context(), identity.UserID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				h.logger.Error("failed to load user for token", "user_id", identity.UserID, "error", err)
			}
			writeAuthError(w, "could not validate credentials")
			return
		}

		ctx := withIdentity(r.Context(), user, identity.SessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActive rejects authenticated but unusable accounts: inactive
// or not email-verified.
func (h *AuthHandler) RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := currentUser(r.Context())
		if err != nil {
			writeAuthError(w, "could not validate credentials")
			return
		}
		if !user.IsActive {
			writeError(w, http.StatusBadRequest, "inactive user")
			return
		}
		if !user.EmailVerified {
			writeError(w, http.StatusBadRequest, "email not verified")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin gates the /admin namespace.
func (h *AuthHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := currentUser(r.Context())
		if err != nil {
			writeAuthError(w, "could not validate credentials")
			return
		}
		if !user.IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        types.User `json:"user"`
}

// Register creates a new account and logs it straight in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Register(r.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Message)
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "username or email already registered")
		default:
			h.logger.Error("registration failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	token, err := h.tokenService.Issue(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{AccessToken: token, TokenType: "bearer", User: user})
}

// Login verifies credentials and returns a fresh token bound to a new
// session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeAuthError(w, "incorrect username or password")
		case errors.Is(err, services.ErrAccountNotUsable):
			writeError(w, http.StatusForbidden, "user account is inactive")
		default:
			h.logger.Error("login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
		}
		return
	}

	token, err := h.tokenService.Issue(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to issue token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer", User: user})
}

// Logout invalidates the session the presented token is bound to.
// Idempotent: logging out twice succeeds both times.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, err := currentSessionID(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	if err := h.tokenService.Revoke(r.Context(), sessionID); err != nil {
		h.logger.Error("failed to revoke session", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// LogoutAll invalidates every session of the caller. Best-effort: a
// partial failure still reports the sessions that were revoked.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	count, err := h.tokenService.RevokeAll(r.Context(), user.ID)
	if err != nil {
		h.logger.Warn("logout-all only partially completed", "user_id", user.ID, "revoked", count, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]int{"revoked": count})
}

// Sessions lists the caller's active sessions.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	sessions, err := h.tokenService.Sessions(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list sessions", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type ProfileUpdateRequest struct {
	Username       *string `json:"username"`
	Email          *string `json:"email"`
	ProfilePicture *string `json:"profile_picture"`
}

// UpdateProfile applies a partial update to the caller's own record.
// When the profile picture is replaced, the old object is deleted from
// storage best-effort; a failed cleanup never fails the request.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	var req ProfileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, replacedPicture, err := h.userService.UpdateProfile(r.Context(), user.ID, services.ProfileUpdate{
		Username:       req.Username,
		Email:          req.Email,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Message)
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "username or email already registered")
		default:
			h.logger.Error("profile update failed", "user_id", user.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update profile")
		}
		return
	}

	if replacedPicture != "" && h.storage != nil {
		if _, err := h.storage.DeleteByURL(r.Context(), replacedPicture); err != nil {
			h.logger.Warn("failed to delete replaced profile picture", "url", replacedPicture, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, updated)
}

type UploadURLRequest struct {
	FileType string `json:"file_type"`
}

// UploadURL issues a presigned upload grant for a new profile picture.
func (h *AuthHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	if h.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}

	var req UploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	grant, err := h.storage.GenerateUploadGrant(r.Context(), user.ID, req.FileType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, "unsupported file type")
			return
		}
		h.logger.Error("failed to generate upload grant", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate upload url")
		return
	}

	writeJSON(w, http.StatusOK, grant)
}
