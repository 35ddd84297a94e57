package http

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/examdesk/examdesk/internal/api/render"
	"github.com/examdesk/examdesk/internal/users"
)

// maxRoster bounds a bulk upload body.
const maxRoster = 8 << 20

func ListUsersHandler(store users.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		out, err := store.List(r.Context(), users.ListOpts{
			Role:     q.Get("role"),
			SchoolID: q.Get("school_id"),
			Q:        q.Get("q"),
			Limit:    render.IntParam(r, "limit", 0),
			Offset:   render.IntParam(r, "offset", 0),
		})
		if err != nil {
			userError(w, log, err)
			return
		}
		render.JSON(w, http.StatusOK, out)
	}
}

// UpdateUserHandler applies an admin patch: role, school, name, active flag.
func UpdateUserHandler(store users.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p users.Patch
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			render.Error(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		if p.Role != nil {
			role := strings.ToLower(strings.TrimSpace(*p.Role))
			p.Role = &role
		}
		u, err := store.Update(r.Context(), chi.URLParam(r, "id"), p)
		if err != nil {
			userError(w, log, err)
			return
		}
		render.JSON(w, http.StatusOK, u)
	}
}

// BulkUpsertUsersHandler imports a roster sent as a JSON array, a CSV body,
// or a multipart upload (field "file") holding either.
func BulkUpsertUsersHandler(store users.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body io.Reader = http.MaxBytesReader(w, r.Body, maxRoster)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				render.Error(w, http.StatusBadRequest, "file required")
				return
			}
			defer f.Close()
			body = f
		}

		rows, err := readRoster(body, r.Header.Get("Content-Type"))
		if err != nil {
			render.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(rows) == 0 {
			render.JSON(w, http.StatusOK, users.BulkResult{})
			return
		}
		res, err := store.BulkUpsert(r.Context(), rows)
		if err != nil {
			userError(w, log, err)
			return
		}
		log.Info("roster imported", zap.Int("inserted", res.Inserted), zap.Int("updated", res.Updated))
		render.JSON(w, http.StatusOK, res)
	}
}

// readRoster sniffs the first non-space byte: '[' or '{' is JSON, anything
// else is CSV with a header row.
func readRoster(r io.Reader, contentType string) ([]users.BulkRow, error) {
	br := bufio.NewReader(r)
	isJSON := strings.Contains(contentType, "json")
	if !isJSON && !strings.Contains(contentType, "csv") {
		for {
			b, err := br.Peek(1)
			if err != nil {
				return nil, errEmptyRoster
			}
			if b[0] == ' ' || b[0] == '\n' || b[0] == '\r' || b[0] == '\t' {
				_, _ = br.ReadByte()
				continue
			}
			isJSON = b[0] == '[' || b[0] == '{'
			break
		}
	}
	if isJSON {
		var rows []users.BulkRow
		if err := json.NewDecoder(br).Decode(&rows); err != nil {
			return nil, errBadJSON
		}
		return rows, nil
	}
	rows, err := users.ParseCSV(br)
	if err != nil {
		return nil, rosterError("bad csv: " + err.Error())
	}
	return rows, nil
}

type rosterError string

func (e rosterError) Error() string { return string(e) }

const (
	errEmptyRoster = rosterError("empty file")
	errBadJSON     = rosterError("expected a JSON array of users")
)
