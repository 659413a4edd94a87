package entity

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusTodo, StatusInProgress, StatusDone:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown task status %q", s)
	}
}

// Task represents a row in the `tasks` table. A task belongs to exactly one
// user through `users_tasks`.
type Task struct {
	ID             int64      `db:"task_id"`
	Title          string     `db:"task_title"`
	Description    *string    `db:"task_description"`
	Status         Status     `db:"task_status"`
	ExpirationDate *time.Time `db:"task_expiration_date"`
}
