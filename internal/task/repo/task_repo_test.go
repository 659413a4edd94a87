package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-tasklist/pkg/database"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := database.Migrate(context.Background(), db, database.DriverSQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *sqlx.DB, username string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRowx(`INSERT INTO users (name, username, password) VALUES (?, ?, ?) RETURNING id`, username, username, "h").Scan(&id)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func TestTaskRepoCreateFind(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewTaskRepo(db)
	uid := seedUser(t, db, "john@x.com")

	desc := "weekly groceries"
	exp := time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC)
	task := &entity.Task{Title: "Shopping", Description: &desc, ExpirationDate: &exp, Status: entity.StatusTodo}
	if err := r.CreateForUser(ctx, task, uid); err != nil {
		t.Fatalf("CreateForUser: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("id not assigned")
	}

	got, err := r.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Title != "Shopping" || got.Status != entity.StatusTodo {
		t.Fatalf("got %+v", got)
	}
	if got.Description == nil || *got.Description != desc {
		t.Fatalf("description = %v", got.Description)
	}
	if got.ExpirationDate == nil || !got.ExpirationDate.Equal(exp) {
		t.Fatalf("expiration = %v", got.ExpirationDate)
	}

	if _, err := r.FindByID(ctx, task.ID+1); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing task: err = %v", err)
	}
}

func TestTaskRepoCreateForUnknownUserRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewTaskRepo(db)

	if err := r.CreateForUser(ctx, &entity.Task{Title: "orphan", Status: entity.StatusTodo}, 42); err == nil {
		t.Fatal("expected foreign key failure")
	}
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM tasks`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("task insert was not rolled back, %d rows", n)
	}
}

func TestTaskRepoFindAllByUserID(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewTaskRepo(db)
	a := seedUser(t, db, "a")
	b := seedUser(t, db, "b")

	for _, title := range []string{"one", "two"} {
		if err := r.CreateForUser(ctx, &entity.Task{Title: title, Status: entity.StatusTodo}, a); err != nil {
			t.Fatalf("CreateForUser: %v", err)
		}
	}
	if err := r.CreateForUser(ctx, &entity.Task{Title: "other", Status: entity.StatusDone}, b); err != nil {
		t.Fatalf("CreateForUser: %v", err)
	}

	tasks, err := r.FindAllByUserID(ctx, a)
	if err != nil {
		t.Fatalf("FindAllByUserID: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "one" || tasks[1].Title != "two" {
		t.Fatalf("tasks = %+v", tasks)
	}

	none, err := r.FindAllByUserID(ctx, 999)
	if err != nil {
		t.Fatalf("FindAllByUserID: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}
}

func TestTaskRepoUpdateDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewTaskRepo(db)
	uid := seedUser(t, db, "u")

	task := &entity.Task{Title: "draft", Status: entity.StatusTodo}
	if err := r.CreateForUser(ctx, task, uid); err != nil {
		t.Fatalf("CreateForUser: %v", err)
	}
	task.Title = "final"
	task.Status = entity.StatusInProgress
	if err := r.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := r.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Title != "final" || got.Status != entity.StatusInProgress {
		t.Fatalf("got %+v", got)
	}
	if err := r.Update(ctx, &entity.Task{ID: 999, Title: "x", Status: entity.StatusTodo}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("update unknown: err = %v", err)
	}

	if err := r.Delete(ctx, task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var links int
	if err := db.Get(&links, `SELECT COUNT(*) FROM users_tasks`); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 0 {
		t.Fatalf("link not cascaded, %d left", links)
	}
	if err := r.Delete(ctx, task.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second delete: err = %v", err)
	}
}
