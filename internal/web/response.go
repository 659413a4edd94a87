// Package web holds the HTTP boundary helpers shared by handlers: JSON
// encoding, request decoding, validation and error translation.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/apperr"
)

// ExceptionBody is the error payload returned for every failed request.
type ExceptionBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindMalformed, apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError translates err into an ExceptionBody. Errors without a kind are
// logged and reported as a generic internal error.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindInternal {
		if logger != nil {
			logger.Errorw("request failed", "err", err)
		}
		WriteJSON(w, http.StatusInternalServerError, ExceptionBody{Message: "Internal error."})
		return
	}
	msg := ae.Message
	if msg == "" {
		msg = ae.Kind.String()
	}
	if logger != nil {
		logger.Debugw("request rejected", "kind", ae.Kind.String(), "err", err)
	}
	WriteJSON(w, StatusOf(ae.Kind), ExceptionBody{Message: msg, Errors: ae.Fields})
}

// DecodeJSON reads a JSON body into v. Any decoding failure is Malformed.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Malformed("Request body is empty.")
		}
		return apperr.Wrap(apperr.KindMalformed, "Malformed request body.", err)
	}
	return nil
}

// PathID parses a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Malformed("Invalid " + name + ".")
	}
	return id, nil
}
