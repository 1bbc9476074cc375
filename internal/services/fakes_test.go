package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/taskdeck/apiserver/internal/store"
	"github.com/taskdeck/apiserver/types"
)

// fakeUserRepo mirrors the relational store in memory, including the
// atomic first-user-is-admin insert and the unique constraints.
type fakeUserRepo struct {
	users    map[int]types.User
	nextID   int
	cascaded int // todo rows reported deleted alongside a user
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) List(_ context.Context) ([]types.User, error) {
	users := make([]types.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	return users, nil
}

func (f *fakeUserRepo) Count(_ context.Context) (int, error) {
	return len(f.users), nil
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	for _, existing := range f.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.IsAdmin = len(f.users) == 0
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range f.users {
		if id == user.ID {
			continue
		}
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int) (int, error) {
	if _, ok := f.users[id]; !ok {
		return 0, store.ErrNotFound
	}
	delete(f.users, id)
	return f.cascaded, nil
}

func (f *fakeUserRepo) Stats(_ context.Context) (store.SystemStats, error) {
	stats := store.SystemStats{TotalUsers: len(f.users)}
	for _, user := range f.users {
		if user.IsAdmin {
			stats.AdminUsers++
		}
		if user.IsActive {
			stats.ActiveUsers++
		}
	}
	return stats, nil
}

// fakeRevoker records which users had their sessions revoked.
type fakeRevoker struct {
	revoked []int
}

func (f *fakeRevoker) RevokeAll(_ context.Context, userID int) (int, error) {
	f.revoked = append(f.revoked, userID)
	return 1, nil
}

// fakeTaskRepo keeps tasks in memory with owner-scoped lookups.
type fakeTaskRepo struct {
	tasks  map[int]types.Task
	nextID int
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[int]types.Task)}
}

func (f *fakeTaskRepo) GetForUser(_ context.Context, id, userID int) (types.Task, error) {
	task, ok := f.tasks[id]
	if !ok || task.UserID != userID {
		return types.Task{}, store.ErrNotFound
	}
	return task, nil
}

func (f *fakeTaskRepo) ListByUser(_ context.Context, userID int, completed *bool) ([]types.Task, error) {
	tasks := make([]types.Task, 0)
	for _, task := range f.tasks {
		if task.UserID != userID {
			continue
		}
		if completed != nil && task.Completed != *completed {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (f *fakeTaskRepo) ListByUserAdmin(ctx context.Context, userID int) ([]types.Task, error) {
	return f.ListByUser(ctx, userID, nil)
}

func (f *fakeTaskRepo) Create(_ context.Context, task types.Task) (types.Task, error) {
	f.nextID++
	task.ID = f.nextID
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeTaskRepo) Update(_ context.Context, id, userID int, patch types.TaskPatch) (types.Task, error) {
	task, ok := f.tasks[id]
	if !ok || task.UserID != userID {
		return types.Task{}, store.ErrNotFound
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.StartDate != nil {
		task.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		task.EndDate = *patch.EndDate
	}
	if patch.Category != nil {
		task.Category = *patch.Category
	}
	task.UpdatedAt = time.Now()
	f.tasks[id] = task
	return task, nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, id, userID int) error {
	task, ok := f.tasks[id]
	if !ok || task.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskRepo) StatsByUser(_ context.Context, userID int) (store.UserStats, error) {
	var stats store.UserStats
	for _, task := range f.tasks {
		if task.UserID != userID {
			continue
		}
		stats.Total++
		if task.Completed {
			stats.Completed++
		}
	}
	stats.Pending = stats.Total - stats.Completed
	return stats, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
