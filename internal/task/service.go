package task

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/task/entity"
)

// Store is the task persistence the service needs. Lookups and writes on an
// unknown id return sql.ErrNoRows.
type Store interface {
	FindByID(ctx context.Context, id int64) (*entity.Task, error)
	FindAllByUserID(ctx context.Context, userID int64) ([]entity.Task, error)
	CreateForUser(ctx context.Context, t *entity.Task, userID int64) error
	Update(ctx context.Context, t *entity.Task) error
	Delete(ctx context.Context, id int64) error
}

var ErrTaskNotFound = apperr.NotFound("Task not found.")

var tracer = otel.Tracer("tasklist/task")

type TaskService struct {
	store  Store
	logger *zap.SugaredLogger
}

func NewTaskService(store Store, logger *zap.SugaredLogger) *TaskService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TaskService{store: store, logger: logger}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTaskNotFound
	}
	return err
}

func (s *TaskService) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	ctx, span := tracer.Start(ctx, "task.GetByID")
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", id))

	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (s *TaskService) GetAllByUserID(ctx context.Context, userID int64) ([]entity.Task, error) {
	ctx, span := tracer.Start(ctx, "task.GetAllByUserID")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	return s.store.FindAllByUserID(ctx, userID)
}

// Create stores a new task with status TODO and assigns it to userID.
func (s *TaskService) Create(ctx context.Context, t *entity.Task, userID int64) (*entity.Task, error) {
	ctx, span := tracer.Start(ctx, "task.Create")
	defer span.End()

	t.Status = entity.StatusTodo
	if err := s.store.CreateForUser(ctx, t, userID); err != nil {
		return nil, err
	}
	s.logger.Debugw("task created", "task_id", t.ID, "user_id", userID)
	return t, nil
}

// Update rewrites the task. An empty status becomes TODO.
func (s *TaskService) Update(ctx context.Context, t *entity.Task) (*entity.Task, error) {
	ctx, span := tracer.Start(ctx, "task.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", t.ID))

	if t.Status == "" {
		t.Status = entity.StatusTodo
	}
	if err := s.store.Update(ctx, t); err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "task.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("task.id", id))

	if err := s.store.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	return nil
}
