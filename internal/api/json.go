package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	// Fields maps request fields to their validation message.
	Fields map[string]string `json:"fields,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeValidationError reports a failed Validate call as 400, listing the
// offending fields when err comes from ozzo-validation.
func writeValidationError(w http.ResponseWriter, err error) {
	body := errorBody(err.Error())
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		body.Fields = make(map[string]string, len(fieldErrs))
		for field, fe := range fieldErrs {
			body.Fields[field] = fe.Error()
		}
	}
	writeJSON(w, http.StatusBadRequest, body)
}
