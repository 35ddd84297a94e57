// Package render writes JSON responses and maps request errors to statuses.
package render

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/examdesk/examdesk/internal/validate"
)

// ErrorBody is the shape of every non-2xx response.
type ErrorBody struct {
	Error  string                `json:"error"`
	Fields []validate.FieldError `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// Validation writes a 400 carrying the per-field failures in err, if any.
func Validation(w http.ResponseWriter, err error) {
	if ve, ok := validate.As(err); ok {
		JSON(w, http.StatusBadRequest, ErrorBody{Error: err.Error(), Fields: ve.Fields})
		return
	}
	Error(w, http.StatusBadRequest, err.Error())
}

// Decode reads a JSON body into v and validates it, writing the 400 itself.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if err := validate.Struct(v); err != nil {
		Validation(w, err)
		return false
	}
	return true
}

// IntParam parses a non-negative query parameter, falling back to def.
func IntParam(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
