package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	taskentity "github.com/ovaphlow/pitchfork/service-tasklist/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/user/entity"
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

func TestMapUserRowsDeduplicates(t *testing.T) {
	desc := sql.NullString{String: "buy milk", Valid: true}
	exp := sql.NullTime{Time: time.Date(2026, 1, 2, 10, 30, 0, 0, time.UTC), Valid: true}
	rows := []userRow{
		{ID: 1, Name: "John", Username: "john@x.com", Password: "h", Role: sql.NullString{String: "USER", Valid: true},
			TaskID: sql.NullInt64{Int64: 7, Valid: true}, TaskTitle: sql.NullString{String: "a", Valid: true}, TaskDescription: desc, TaskExpirationDate: exp, TaskStatus: sql.NullString{String: "TODO", Valid: true}},
		{ID: 1, Name: "John", Username: "john@x.com", Password: "h", Role: sql.NullString{String: "ADMIN", Valid: true},
			TaskID: sql.NullInt64{Int64: 7, Valid: true}, TaskTitle: sql.NullString{String: "a", Valid: true}, TaskDescription: desc, TaskExpirationDate: exp, TaskStatus: sql.NullString{String: "TODO", Valid: true}},
		{ID: 1, Name: "John", Username: "john@x.com", Password: "h", Role: sql.NullString{String: "USER", Valid: true},
			TaskID: sql.NullInt64{Int64: 9, Valid: true}, TaskTitle: sql.NullString{String: "b", Valid: true}, TaskStatus: sql.NullString{String: "DONE", Valid: true}},
	}
	u := mapUserRows(rows)
	if u == nil {
		t.Fatal("expected a user")
	}
	if len(u.Roles) != 2 || u.Roles[0] != entity.RoleAdmin || u.Roles[1] != entity.RoleUser {
		t.Fatalf("roles = %v", u.Roles)
	}
	if len(u.Tasks) != 2 || u.Tasks[0].ID != 7 || u.Tasks[1].ID != 9 {
		t.Fatalf("tasks = %+v", u.Tasks)
	}
	if u.Tasks[0].Description == nil || *u.Tasks[0].Description != "buy milk" {
		t.Fatalf("description not mapped: %+v", u.Tasks[0])
	}
	if u.Tasks[0].ExpirationDate == nil || !u.Tasks[0].ExpirationDate.Equal(exp.Time) {
		t.Fatalf("expiration not mapped: %+v", u.Tasks[0])
	}
	if u.Tasks[1].Description != nil || u.Tasks[1].ExpirationDate != nil {
		t.Fatalf("null columns must stay nil: %+v", u.Tasks[1])
	}
	if mapUserRows(nil) != nil {
		t.Fatal("empty result must map to nil")
	}
}

func TestMapUserRowsWithoutRolesOrTasks(t *testing.T) {
	u := mapUserRows([]userRow{{ID: 3, Name: "n", Username: "u"}})
	if u == nil || len(u.Roles) != 0 || len(u.Tasks) != 0 {
		t.Fatalf("got %+v", u)
	}
}

func TestUserRepoCreateFind(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepo(newTestDB(t))

	u := &entity.User{Name: "John Smith", Username: "john@x.com", Password: "hash"}
	id, err := r.CreateWithRole(ctx, u, entity.RoleUser)
	if err != nil {
		t.Fatalf("CreateWithRole: %v", err)
	}
	if id == 0 || u.ID != id {
		t.Fatalf("id = %d, u.ID = %d", id, u.ID)
	}

	got, err := r.FindByUsername(ctx, "john@x.com")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if got.ID != id || got.Name != "John Smith" || got.Password != "hash" {
		t.Fatalf("got %+v", got)
	}
	if len(got.Roles) != 1 || got.Roles[0] != entity.RoleUser {
		t.Fatalf("roles = %v", got.Roles)
	}

	byID, err := r.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if byID.Username != "john@x.com" {
		t.Fatalf("got %+v", byID)
	}

	if _, err := r.FindByID(ctx, id+100); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing id: err = %v", err)
	}
	if _, err := r.FindByUsername(ctx, "nobody"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing username: err = %v", err)
	}
}

func TestUserRepoDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepo(newTestDB(t))
	if _, err := r.CreateWithRole(ctx, &entity.User{Name: "a", Username: "dup", Password: "h"}, entity.RoleUser); err != nil {
		t.Fatalf("CreateWithRole: %v", err)
	}
	_, err := r.CreateWithRole(ctx, &entity.User{Name: "b", Username: "dup", Password: "h"}, entity.RoleUser)
	if !database.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestUserRepoCreateWithRoleRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewUserRepo(db)

	// the role insert fails inside the transaction
	if _, err := db.ExecContext(ctx, `DROP TABLE users_roles`); err != nil {
		t.Fatalf("drop users_roles: %v", err)
	}
	u := &entity.User{Name: "a", Username: "a@x.com", Password: "h"}
	if _, err := r.CreateWithRole(ctx, u, entity.RoleUser); err == nil {
		t.Fatal("expected error")
	}
	if u.ID != 0 {
		t.Fatalf("u.ID = %d after rollback", u.ID)
	}
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if n != 0 {
		t.Fatalf("users = %d, want 0", n)
	}
}

func TestUserRepoUpdate(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepo(newTestDB(t))
	u := &entity.User{Name: "a", Username: "a@x.com", Password: "h1"}
	if _, err := r.CreateWithRole(ctx, u, entity.RoleUser); err != nil {
		t.Fatalf("CreateWithRole: %v", err)
	}
	u.Name = "b"
	u.Password = "h2"
	if err := r.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := r.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.Name != "b" || got.Password != "h2" {
		t.Fatalf("got %+v", got)
	}

	if err := r.Update(ctx, &entity.User{ID: 999, Name: "x", Username: "x", Password: "x"}); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("unknown id: err = %v", err)
	}
}

func TestUserRepoTasksOwnershipAndDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewUserRepo(db)

	owner := &entity.User{Name: "o", Username: "owner", Password: "h"}
	other := &entity.User{Name: "x", Username: "other", Password: "h"}
	for _, u := range []*entity.User{owner, other} {
		if _, err := r.CreateWithRole(ctx, u, entity.RoleUser); err != nil {
			t.Fatalf("CreateWithRole: %v", err)
		}
	}
	if err := r.InsertRole(ctx, owner.ID, entity.RoleAdmin); err != nil {
		t.Fatalf("InsertRole admin: %v", err)
	}

	var taskIDs []int64
	for _, title := range []string{"first", "second"} {
		var id int64
		if err := db.QueryRowxContext(ctx, `INSERT INTO tasks (title, status) VALUES (?, ?) RETURNING id`, title, string(taskentity.StatusTodo)).Scan(&id); err != nil {
			t.Fatalf("insert task: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO users_tasks (task_id, user_id) VALUES (?, ?)`, id, owner.ID); err != nil {
			t.Fatalf("assign task: %v", err)
		}
		taskIDs = append(taskIDs, id)
	}

	got, err := r.FindByID(ctx, owner.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	// two roles x two tasks collapse into one user
	if len(got.Roles) != 2 || len(got.Tasks) != 2 {
		t.Fatalf("roles = %v tasks = %+v", got.Roles, got.Tasks)
	}
	if got.Tasks[0].Title != "first" || got.Tasks[1].Title != "second" {
		t.Fatalf("task order = %+v", got.Tasks)
	}

	ok, err := r.IsTaskOwner(ctx, owner.ID, taskIDs[0])
	if err != nil || !ok {
		t.Fatalf("IsTaskOwner(owner) = %v, %v", ok, err)
	}
	ok, err = r.IsTaskOwner(ctx, other.ID, taskIDs[0])
	if err != nil || ok {
		t.Fatalf("IsTaskOwner(other) = %v, %v", ok, err)
	}

	if err := r.Delete(ctx, owner.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.FindByID(ctx, owner.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("deleted user still found: %v", err)
	}
	var left int
	if err := db.GetContext(ctx, &left, `SELECT COUNT(*) FROM tasks`); err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if left != 0 {
		t.Fatalf("owned tasks not removed, %d left", left)
	}
	if err := r.Delete(ctx, owner.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second delete: err = %v", err)
	}
}
