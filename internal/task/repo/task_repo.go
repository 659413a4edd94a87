package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/task/entity"
)

// TaskRepo provides data access for tasks and their assignment in users_tasks.
type TaskRepo struct {
	db *sqlx.DB
}

func NewTaskRepo(db *sqlx.DB) *TaskRepo { return &TaskRepo{db: db} }

const selectTask = `SELECT t.id AS task_id,
       t.title AS task_title,
       t.description AS task_description,
       t.expiration_date AS task_expiration_date,
       t.status AS task_status
  FROM tasks t`

// FindByID returns a task or sql.ErrNoRows.
func (r *TaskRepo) FindByID(ctx context.Context, id int64) (*entity.Task, error) {
	var t entity.Task
	if err := r.db.GetContext(ctx, &t, r.db.Rebind(selectTask+` WHERE t.id = ?`), id); err != nil {
		return nil, err
	}
	return &t, nil
}

// FindAllByUserID lists the tasks assigned to a user ordered by id.
func (r *TaskRepo) FindAllByUserID(ctx context.Context, userID int64) ([]entity.Task, error) {
	q := r.db.Rebind(selectTask + `
       JOIN users_tasks ut ON t.id = ut.task_id
 WHERE ut.user_id = ?
 ORDER BY t.id`)
	tasks := []entity.Task{}
	if err := r.db.SelectContext(ctx, &tasks, q, userID); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateForUser inserts the task and links it to userID in one transaction.
func (r *TaskRepo) CreateForUser(ctx context.Context, t *entity.Task, userID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ins := tx.Rebind(`INSERT INTO tasks (title, description, expiration_date, status) VALUES (?, ?, ?, ?) RETURNING id`)
	if err := tx.QueryRowxContext(ctx, ins, t.Title, t.Description, t.ExpirationDate, string(t.Status)).Scan(&t.ID); err != nil {
		return err
	}
	if err := assign(ctx, tx, t.ID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

func assign(ctx context.Context, ex sqlx.ExtContext, taskID, userID int64) error {
	q := ex.Rebind(`INSERT INTO users_tasks (task_id, user_id) VALUES (?, ?)`)
	_, err := ex.ExecContext(ctx, q, taskID, userID)
	return err
}

// Update rewrites every mutable column. Returns sql.ErrNoRows for an unknown id.
func (r *TaskRepo) Update(ctx context.Context, t *entity.Task) error {
	q := r.db.Rebind(`UPDATE tasks SET title = ?, description = ?, expiration_date = ?, status = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, t.Title, t.Description, t.ExpirationDate, string(t.Status), t.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Delete removes a task; its users_tasks link goes with it.
func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
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
