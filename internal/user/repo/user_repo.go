package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	taskentity "github.com/ovaphlow/pitchfork/service-tasklist/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/user/entity"
)

// UserRepo provides data access for users, users_roles and the ownership side
// of users_tasks using sqlx. Queries are written with '?' and rebound per driver.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

const selectUserJoined = `SELECT u.id AS user_id,
       u.name AS user_name,
       u.username AS user_username,
       u.password AS user_password,
       ur.role AS user_role_role,
       t.id AS task_id,
       t.title AS task_title,
       t.description AS task_description,
       t.expiration_date AS task_expiration_date,
       t.status AS task_status
  FROM users u
       LEFT JOIN users_roles ur ON u.id = ur.user_id
       LEFT JOIN users_tasks ut ON u.id = ut.user_id
       LEFT JOIN tasks t ON ut.task_id = t.id`

// userRow is one row of the users x roles x tasks join.
type userRow struct {
	ID                 int64          `db:"user_id"`
	Name               string         `db:"user_name"`
	Username           string         `db:"user_username"`
	Password           string         `db:"user_password"`
	Role               sql.NullString `db:"user_role_role"`
	TaskID             sql.NullInt64  `db:"task_id"`
	TaskTitle          sql.NullString `db:"task_title"`
	TaskDescription    sql.NullString `db:"task_description"`
	TaskExpirationDate sql.NullTime   `db:"task_expiration_date"`
	TaskStatus         sql.NullString `db:"task_status"`
}

// mapUserRows folds the denormalized join into one User. Roles are collected
// as a set, tasks are deduplicated by id in first-seen order. Returns nil for
// an empty result.
func mapUserRows(rows []userRow) *entity.User {
	if len(rows) == 0 {
		return nil
	}
	first := rows[0]
	u := &entity.User{
		ID:       first.ID,
		Name:     first.Name,
		Username: first.Username,
		Password: first.Password,
		Roles:    []entity.Role{},
		Tasks:    []taskentity.Task{},
	}
	roles := make(map[entity.Role]struct{})
	tasks := make(map[int64]struct{})
	for _, r := range rows {
		if r.Role.Valid {
			role := entity.Role(r.Role.String)
			if _, ok := roles[role]; !ok {
				roles[role] = struct{}{}
				u.Roles = append(u.Roles, role)
			}
		}
		if r.TaskID.Valid {
			if _, ok := tasks[r.TaskID.Int64]; ok {
				continue
			}
			tasks[r.TaskID.Int64] = struct{}{}
			t := taskentity.Task{
				ID:     r.TaskID.Int64,
				Title:  r.TaskTitle.String,
				Status: taskentity.Status(r.TaskStatus.String),
			}
			if r.TaskDescription.Valid {
				d := r.TaskDescription.String
				t.Description = &d
			}
			if r.TaskExpirationDate.Valid {
				e := r.TaskExpirationDate.Time
				t.ExpirationDate = &e
			}
			u.Tasks = append(u.Tasks, t)
		}
	}
	u.Roles = entity.NormalizeRoles(u.Roles)
	return u
}

func (r *UserRepo) findOne(ctx context.Context, where string, arg any) (*entity.User, error) {
	q := r.db.Rebind(selectUserJoined + " WHERE " + where + " ORDER BY t.id")
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, q, arg); err != nil {
		return nil, err
	}
	u := mapUserRows(rows)
	if u == nil {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

// FindByID returns the user with roles and tasks or sql.ErrNoRows.
func (r *UserRepo) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.findOne(ctx, "u.id = ?", id)
}

// FindByUsername returns the user with roles and tasks or sql.ErrNoRows.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.findOne(ctx, "u.username = ?", username)
}

// CreateWithRole inserts a user row with its first role in one transaction
// and sets u.ID.
func (r *UserRepo) CreateWithRole(ctx context.Context, u *entity.User, role entity.Role) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	q := tx.Rebind(`INSERT INTO users (name, username, password) VALUES (?, ?, ?) RETURNING id`)
	var id int64
	if err := tx.QueryRowxContext(ctx, q, u.Name, u.Username, u.Password).Scan(&id); err != nil {
		return 0, err
	}
	if err := insertRole(ctx, tx, id, role); err != nil {
		return 0, fmt.Errorf("insert role: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

// Update writes name, username and password hash. Returns sql.ErrNoRows when
// the id does not exist.
func (r *UserRepo) Update(ctx context.Context, u *entity.User) error {
	q := r.db.Rebind(`UPDATE users SET name = ?, username = ?, password = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, u.Name, u.Username, u.Password, u.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes the user together with the tasks it owns.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	delTasks := tx.Rebind(`DELETE FROM tasks WHERE id IN (SELECT task_id FROM users_tasks WHERE user_id = ?)`)
	if _, err := tx.ExecContext(ctx, delTasks, id); err != nil {
		return fmt.Errorf("delete user tasks: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertRole adds role to the user's role set.
func (r *UserRepo) InsertRole(ctx context.Context, userID int64, role entity.Role) error {
	return insertRole(ctx, r.db, userID, role)
}

func insertRole(ctx context.Context, ex sqlx.ExtContext, userID int64, role entity.Role) error {
	q := ex.Rebind(`INSERT INTO users_roles (user_id, role) VALUES (?, ?)`)
	_, err := ex.ExecContext(ctx, q, userID, string(role))
	return err
}

// IsTaskOwner reports whether taskID is linked to userID.
func (r *UserRepo) IsTaskOwner(ctx context.Context, userID, taskID int64) (bool, error) {
	q := r.db.Rebind(`SELECT EXISTS (SELECT 1 FROM users_tasks WHERE user_id = ? AND task_id = ?)`)
	var owner bool
	if err := r.db.GetContext(ctx, &owner, q, userID, taskID); err != nil {
		return false, err
	}
	return owner, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
