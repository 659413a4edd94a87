package task

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/auth"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/web"
)

// Handler exposes the /tasks endpoints. Every call is limited to the task's
// owner and ADMIN principals.
type Handler struct {
	svc      *TaskService
	owners   auth.TaskOwners
	validate *web.Validator
	logger   *zap.SugaredLogger
}

func NewHandler(svc *TaskService, owners auth.TaskOwners, v *web.Validator, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, owners: owners, validate: v, logger: logger}
}

func (h *Handler) authorize(r *http.Request, taskID int64) error {
	u, _ := auth.PrincipalFrom(r.Context())
	ok, err := auth.CanAccessTask(r.Context(), h.owners, u, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ErrAccessDenied
	}
	return nil
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if err := h.authorize(r, id); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	t, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, ToResponse(t))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if err := h.authorize(r, req.ID); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	t, err := h.svc.Update(r.Context(), req.Entity())
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, ToResponse(t))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := web.PathID(r, "id")
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if err := h.authorize(r, id); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
