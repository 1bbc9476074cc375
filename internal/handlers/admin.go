package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taskdeck/apiserver/internal/services"
	"github.com/taskdeck/apiserver/internal/store"
)

// AdminHandler provides the elevated /admin endpoints.
type AdminHandler struct {
	userService *services.UserService
	taskService *services.TaskService
	logger      *slog.Logger
}

func NewAdminHandler(userService *services.UserService, taskService *services.TaskService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		userService: userService,
		taskService: taskService,
		logger:      logger,
	}
}

// AdminRouter registers admin routes. The whole namespace runs behind
// authenticate, active, and admin checks.
func AdminRouter(r chi.Router, handler *AdminHandler, authenticate, requireActive, requireAdmin func(http.Handler) http.Handler) {
	r.Use(authenticate, requireActive, requireAdmin)

	r.Get("/users", handler.ListUsers)
	r.Get("/stats", handler.SystemStats)
	r.Route("/users/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Get("/todos", handler.ListUserTasks)
		r.Delete("/", handler.DeleteUser)
		r.Put("/role", handler.ToggleRole)
	})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to fetch user", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) ListUserTasks(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := h.taskService.ListForUserAdmin(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("failed to list user tasks", "user_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list todos")
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

// DeleteUser removes a user and everything they own. Admins cannot
// delete their own account through this endpoint.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	admin, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	username, tasksDeleted, err := h.userService.DeleteUser(r.Context(), admin.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfActionForbidden):
			writeError(w, http.StatusBadRequest, "cannot delete your own account")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			h.logger.Error("failed to delete user", "user_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to delete user")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "user deleted successfully",
		"user_id":       id,
		"username":      username,
		"todos_deleted": tasksDeleted,
	})
}

// ToggleRole flips a user's admin flag. Admins cannot change their own
// role.
func (h *AdminHandler) ToggleRole(w http.ResponseWriter, r *http.Request) {
	admin, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.ToggleAdmin(r.Context(), admin.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfActionForbidden):
			writeError(w, http.StatusBadRequest, "cannot change your own admin role")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			h.logger.Error("failed to toggle role", "user_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update role")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) SystemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.userService.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute system stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": map[string]int{
			"total":  stats.TotalUsers,
			"admins": stats.AdminUsers,
			"active": stats.ActiveUsers,
		},
		"todos": map[string]int{
			"total":     stats.TotalTasks,
			"completed": stats.CompletedTasks,
			"pending":   stats.TotalTasks - stats.CompletedTasks,
		},
	})
}

func parseUserID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "userID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}
