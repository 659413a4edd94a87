package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/web"
)

// Handler exposes login and refresh.
type Handler struct {
	issuer   *SessionIssuer
	validate *web.Validator
	logger   *zap.SugaredLogger
}

func NewHandler(issuer *SessionIssuer, v *web.Validator, logger *zap.SugaredLogger) *Handler {
	return &Handler{issuer: issuer, validate: v, logger: logger}
}

// LoginRequest login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	pair, err := h.issuer.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, pair)
}

const maxRefreshBody = 8 << 10

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRefreshBody))
	if err != nil {
		web.WriteError(w, h.logger, apperr.Wrap(apperr.KindMalformed, "Malformed request body.", err))
		return
	}
	token := refreshTokenFromBody(raw)
	if token == "" {
		web.WriteError(w, h.logger, apperr.Validation(map[string]string{"refreshToken": "refreshToken must be not null."}))
		return
	}
	pair, err := h.issuer.Refresh(r.Context(), token)
	if err != nil {
		web.WriteError(w, h.logger, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, pair)
}

// refreshTokenFromBody accepts the token as a bare string, a JSON string or
// a {"refreshToken": "..."} object.
func refreshTokenFromBody(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return strings.TrimSpace(s)
		}
		return ""
	case '{':
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if json.Unmarshal(raw, &body) == nil {
			return strings.TrimSpace(body.RefreshToken)
		}
		return ""
	default:
		return string(raw)
	}
}
