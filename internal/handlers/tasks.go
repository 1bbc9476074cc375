package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taskdeck/apiserver/internal/services"
	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
)

// TaskHandler provides the per-user task CRUD endpoints.
type TaskHandler struct {
	taskService *services.TaskService
	logger      *slog.Logger
}

func NewTaskHandler(taskService *services.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, logger: logger}
}

// TaskRouter registers task routes on the given router. Every route
// runs behind the full guard chain.
func TaskRouter(r chi.Router, handler *TaskHandler, authenticate, requireActive func(http.Handler) http.Handler) {
	r.Use(authenticate, requireActive)

	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Put("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
	})
}

type TaskCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Category    string `json:"category"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	var req TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	task, err := h.taskService.Create(r.Context(), user.ID, services.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Status:      req.Status,
		Priority:    req.Priority,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Category:    req.Category,
	})
	if err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			writeError(w, http.StatusBadRequest, validationErr.Message)
			return
		}
		h.logger.Error("failed to create task", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create todo")
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	completed, err := parseCompletedFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid completed filter")
		return
	}

	tasks, err := h.taskService.List(r.Context(), user.ID, completed)
	if err != nil {
		h.logger.Error("failed to list tasks", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list todos")
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.Get(r.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "todo not found")
			return
		}
		h.logger.Error("failed to fetch task", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch todo")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var patch types.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	task, err := h.taskService.Update(r.Context(), id, user.ID, patch)
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(w, http.StatusBadRequest, validationErr.Message)
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "todo not found")
		default:
			h.logger.Error("failed to update task", "task_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to update todo")
		}
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.taskService.Delete(r.Context(), id, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "todo not found")
			return
		}
		h.logger.Error("failed to delete task", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete todo")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "todo deleted successfully", "id": id})
}

// Stats returns the caller's task counters.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r.Context())
	if err != nil {
		writeAuthError(w, "could not validate credentials")
		return
	}

	stats, err := h.taskService.Stats(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to compute stats", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":     stats.Total,
		"completed": stats.Completed,
		"pending":   stats.Pending,
		"user":      user.Username,
	})
}

func parseTaskID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "taskID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid todo id")
	}
	return id, nil
}

func parseCompletedFilter(r *http.Request) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("completed"))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}
