package user

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/auth"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/task"
	taskentity "github.com/ovaphlow/pitchfork/service-tasklist/internal/task/entity"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/web"
)

// Tasks is the part of the task service used by the /users/{id}/tasks endpoints.
type Tasks interface {
	GetAllByUserID(ctx context.Context, userID int64) ([]taskentity.Task, error)
	Create(ctx context.Context, t *taskentity.Task, userID int64) (*taskentity.Task, error)
}

// Handler exposes registration, the /users endpoints and admin role management.
type Handler struct {
	svc      *UserService
	tasks    Tasks
	validate *web.Validator
	logger   *zap.SugaredLogger
}

func NewHandler(svc *UserService, tasks Tasks, v *web.Validator, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, tasks: tasks, validate: v, logger: logger}
}

// Response is the public view of a user. Password fields are never written.
type Response struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func toResponse(u *entity.User) Response {
	return Response{ID: u.ID, Name: u.Name, Username: u.Username, Roles: u.RoleNames()}
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Username             string `json:"username" validate:"required,max=255"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required"`
}

// UpdateRequest is the body of PUT /users.
type UpdateRequest struct {
	ID                   int64  `json:"id" validate:"required"`
	Name                 string `json:"name" validate:"required,max=255"`
	Username             string `json:"username" validate:"required,max=255"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"passwordConfirmation" validate:"required"`
}

// RoleRequest is the body of POST /admin/users/{id}/roles.
type RoleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

type RolesResponse struct {
	ID    int64    `json:"id"`
	Roles []string `json:"roles"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := web.DecodeJSON(r, v); err != nil {
		web.WriteError(w, h.logger, err)
		return false
	}
	if err := h.validate.Validate(v); err != nil {
		web.WriteError(w, h.logger, err)
		return false
	}
	return true
}

// userID reads {id} and checks the caller may act on that user.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, err)
		return 0, false
	}
	u, _ := auth.PrincipalFrom(r.Context())
	if !auth.CanAccessUser(u, id) {
		web.WriteError(w, h.logger, auth.ErrAccessDenied)
		return 0, false
	}
	return id, true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.svc.Create(r.Context(), &entity.User{
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
	}, req.PasswordConfirmation)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, toResponse(u))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	u, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toResponse(u))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, _ := auth.PrincipalFrom(r.Context())
	if !auth.CanAccessUser(p, req.ID) {
		web.WriteError(w, h.logger, auth.ErrAccessDenied)
		return
	}
	u, err := h.svc.Update(r.Context(), &entity.User{
		ID:       req.ID,
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
	}, req.PasswordConfirmation)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toResponse(u))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.GetByID(r.Context(), id); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	tasks, err := h.tasks.GetAllByUserID(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, task.ToResponses(tasks))
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req task.CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.svc.GetByID(r.Context(), id); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	t, err := h.tasks.Create(r.Context(), req.Entity(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, task.ToResponse(t))
}

func (h *Handler) Roles(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, RolesResponse{ID: u.ID, Roles: u.RoleNames()})
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	var req RoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, _ := entity.ParseRole(req.Role)
	u, err := h.svc.GrantRole(r.Context(), id, role)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, RolesResponse{ID: u.ID, Roles: u.RoleNames()})
}
