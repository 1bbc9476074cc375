package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/taskdeck/apiserver/internal/mq"
	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000

	defaultStatus   = "todo"
	defaultPriority = "medium"
	defaultCategory = "General"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	GetForUser(ctx context.Context, id, userID int) (types.Task, error)
	ListByUser(ctx context.Context, userID int, completed *bool) ([]types.Task, error)
	ListByUserAdmin(ctx context.Context, userID int) ([]types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, id, userID int, patch types.TaskPatch) (types.Task, error)
	Delete(ctx context.Context, id, userID int) error
	StatsByUser(ctx context.Context, userID int) (store.UserStats, error)
}

// TaskService encapsulates task use-cases. Every operation that takes
// a userID is owner-scoped; tasks belonging to someone else surface as
// store.ErrNotFound.
type TaskService struct {
	repo       TaskRepository
	users      UserRepository
	events     *mq.MQ
	eventsChan string
	logger     *slog.Logger
}

func NewTaskService(repo TaskRepository, users UserRepository, events *mq.MQ, eventsChannel string, logger *slog.Logger) *TaskService {
	return &TaskService{
		repo:       repo,
		users:      users,
		events:     events,
		eventsChan: eventsChannel,
		logger:     logger,
	}
}

// TaskInput is the shape of a task creation request.
type TaskInput struct {
	Title       string
	Description string
	Completed   bool
	Status      string
	Priority    string
	StartDate   string
	EndDate     string
	Category    string
}

// Create validates the input, fills defaults, and persists the task
// for the given owner. Titles are trimmed; an all-whitespace title is
// rejected before anything is written.
func (s *TaskService) Create(ctx context.Context, userID int, input TaskInput) (types.Task, error) {
	title, err := normalizeTitle(input.Title)
	if err != nil {
		return types.Task{}, err
	}
	if utf8.RuneCountInString(input.Description) > maxDescriptionLen {
		return types.Task{}, validationErrorf("description must be at most %d characters", maxDescriptionLen)
	}

	task := types.Task{
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		Completed:   input.Completed,
		Status:      withDefault(input.Status, defaultStatus),
		Priority:    withDefault(input.Priority, defaultPriority),
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Category:    withDefault(input.Category, defaultCategory),
	}

	created, err := s.repo.Create(ctx, task)
	if err != nil {
		return types.Task{}, err
	}

	s.publish(ctx, "task.created", created)
	return created, nil
}

// List returns the user's tasks, newest first, optionally filtered on
// completion state.
func (s *TaskService) List(ctx context.Context, userID int, completed *bool) ([]types.Task, error) {
	return s.repo.ListByUser(ctx, userID, completed)
}

func (s *TaskService) Get(ctx context.Context, id, userID int) (types.Task, error) {
	return s.repo.GetForUser(ctx, id, userID)
}

// Update applies a partial patch. Only supplied fields change;
// updated_at is bumped on every successful mutation.
func (s *TaskService) Update(ctx context.Context, id, userID int, patch types.TaskPatch) (types.Task, error) {
	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return types.Task{}, err
		}
		patch.Title = &title
	}
	if patch.Description != nil && utf8.RuneCountInString(*patch.Description) > maxDescriptionLen {
		return types.Task{}, validationErrorf("description must be at most %d characters", maxDescriptionLen)
	}

	updated, err := s.repo.Update(ctx, id, userID, patch)
	if err != nil {
		return types.Task{}, err
	}

	s.publish(ctx, "task.updated", updated)
	return updated, nil
}

func (s *TaskService) Delete(ctx context.Context, id, userID int) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.publish(ctx, "task.deleted", types.Task{ID: id, UserID: userID})
	return nil
}

func (s *TaskService) Stats(ctx context.Context, userID int) (store.UserStats, error) {
	return s.repo.StatsByUser(ctx, userID)
}

// ListForUserAdmin returns every task of the given user for the admin
// surface. The target user must exist.
func (s *TaskService) ListForUserAdmin(ctx context.Context, userID int) ([]types.Task, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByUserAdmin(ctx, userID)
}

func (s *TaskService) publish(ctx context.Context, event string, task types.Task) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		return
	}
	if _, err := s.events.Publish(ctx, s.eventsChan, data, map[string]string{"event": event}); err != nil {
		s.logger.Warn("failed to publish task event", "event", event, "error", err)
	}
}

// normalizeTitle trims and bounds the title. The limit counts
// characters, not bytes, matching the VARCHAR column.
func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", validationErrorf("title cannot be empty")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return "", validationErrorf("title must be at most %d characters", maxTitleLen)
	}
	return title, nil
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
