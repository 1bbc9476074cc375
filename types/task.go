package types

import "time"

// Task is a unit of work owned by exactly one user.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// UserID is the owning user. Immutable after creation.
	UserID int `json:"user_id" db:"user_id"`

	// Title is the short summary of the task, trimmed and non-blank.
	Title string `json:"title" db:"title"`

	// Description is free-form detail text, optional.
	Description string `json:"description,omitempty" db:"description"`

	// Completed marks the task as done.
	Completed bool `json:"completed" db:"completed"`

	// Status is a workflow label (todo, in-progress, done, blocked).
	// Stored as given; not validated beyond being a string.
	Status string `json:"status" db:"status"`

	// Priority is one of low, medium, high.
	Priority string `json:"priority" db:"priority"`

	// StartDate and EndDate are free-form date strings (YYYY-MM-DD).
	StartDate string `json:"start_date,omitempty" db:"start_date"`
	EndDate   string `json:"end_date,omitempty" db:"end_date"`

	// Category is a grouping tag for the task.
	Category string `json:"category" db:"category"`

	// CreatedAt is when the task was created. Immutable.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaskPatch carries a partial update. Nil fields are left untouched;
// each field is applied independently, no reflection involved. An
// all-nil patch is legal and only bumps UpdatedAt.
type TaskPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Category    *string `json:"category"`
}
