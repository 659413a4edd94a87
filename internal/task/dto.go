package task

import (
	"encoding/json"
	"time"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/task/entity"
)

// DateTimeLayout is the wire format of expirationDate.
const DateTimeLayout = "2006-01-02 15:04"

// DateTime is a minute-precision timestamp without zone, read and written in UTC.
type DateTime time.Time

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).UTC().Format(DateTimeLayout))
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.ParseInLocation(DateTimeLayout, s, time.UTC)
	if err != nil {
		return err
	}
	*d = DateTime(t)
	return nil
}

func toTime(d *DateTime) *time.Time {
	if d == nil {
		return nil
	}
	t := time.Time(*d)
	return &t
}

func fromTime(t *time.Time) *DateTime {
	if t == nil {
		return nil
	}
	d := DateTime(*t)
	return &d
}

type Response struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	Description    *string       `json:"description"`
	Status         entity.Status `json:"status"`
	ExpirationDate *DateTime     `json:"expirationDate"`
}

func ToResponse(t *entity.Task) Response {
	return Response{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         t.Status,
		ExpirationDate: fromTime(t.ExpirationDate),
	}
}

func ToResponses(tasks []entity.Task) []Response {
	out := make([]Response, 0, len(tasks))
	for i := range tasks {
		out = append(out, ToResponse(&tasks[i]))
	}
	return out
}

// CreateRequest is the body of POST /users/{id}/tasks.
type CreateRequest struct {
	Title          string    `json:"title" validate:"required,max=255"`
	Description    *string   `json:"description" validate:"omitempty,max=255"`
	ExpirationDate *DateTime `json:"expirationDate"`
}

func (r CreateRequest) Entity() *entity.Task {
	return &entity.Task{
		Title:          r.Title,
		Description:    r.Description,
		ExpirationDate: toTime(r.ExpirationDate),
	}
}

// UpdateRequest is the body of PUT /tasks.
type UpdateRequest struct {
	ID             int64     `json:"id" validate:"required"`
	Title          string    `json:"title" validate:"required,max=255"`
	Description    *string   `json:"description" validate:"omitempty,max=255"`
	Status         string    `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	ExpirationDate *DateTime `json:"expirationDate"`
}

func (r UpdateRequest) Entity() *entity.Task {
	return &entity.Task{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Status:         entity.Status(r.Status),
		ExpirationDate: toTime(r.ExpirationDate),
	}
}
