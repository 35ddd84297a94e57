package question

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/examdesk/examdesk/internal/api/render"
	"github.com/examdesk/examdesk/internal/rbac"
	"github.com/examdesk/examdesk/internal/validate"
)

// maxImport caps one import request.
const maxImport = 1000

// Routes serves the question bank under /api/questions. These responses carry
// answer keys, so only staff roles hold questions:view.
func Routes(store Store, log *zap.Logger) http.Handler {
	h := handlers{store: store, log: log}
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(rbac.Require("questions:view"))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require("questions:edit"))
		r.Post("/", h.create)
		r.Post("/import", h.importBatch)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.deactivate)
	})
	return r
}

type handlers struct {
	store Store
	log   *zap.Logger
}

func (h handlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.store.List(r.Context(), ListOpts{
		Bank:            q.Get("bank"),
		SubjectID:       q.Get("subject_id"),
		ChapterID:       q.Get("chapter_id"),
		Type:            q.Get("type"),
		Q:               q.Get("q"),
		IncludeInactive: q.Get("include_inactive") == "true",
		Limit:           render.IntParam(r, "limit", 0),
		Offset:          render.IntParam(r, "offset", 0),
	})
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) get(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) create(w http.ResponseWriter, r *http.Request) {
	var in Question
	if !render.Decode(w, r, &in) {
		return
	}
	out, err := h.store.Create(r.Context(), in)
	h.respond(w, http.StatusCreated, out, err)
}

// update applies the body on top of the stored question, so clients may send
// only the fields they change.
func (h handlers) update(w http.ResponseWriter, r *http.Request) {
	cur, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respond(w, 0, nil, err)
		return
	}
	id := cur.ID
	if err := json.NewDecoder(r.Body).Decode(&cur); err != nil {
		render.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	cur.ID = id
	out, err := h.store.Update(r.Context(), cur)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) deactivate(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusNoContent, nil, h.store.Deactivate(r.Context(), chi.URLParam(r, "id")))
}

func (h handlers) importBatch(w http.ResponseWriter, r *http.Request) {
	var in []Question
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		render.Error(w, http.StatusBadRequest, "expected a JSON array of questions")
		return
	}
	if len(in) > maxImport {
		render.Error(w, http.StatusRequestEntityTooLarge, "too many questions in one import")
		return
	}
	n, err := h.store.Import(r.Context(), in)
	h.respond(w, http.StatusCreated, map[string]int{"imported": n}, err)
}

func (h handlers) respond(w http.ResponseWriter, status int, v any, err error) {
	if _, ok := validate.As(err); ok {
		render.Validation(w, err)
		return
	}
	switch {
	case err == nil && status == http.StatusNoContent:
		w.WriteHeader(status)
	case err == nil:
		render.JSON(w, status, v)
	case errors.Is(err, ErrNotFound):
		render.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrNoBank):
		render.Error(w, http.StatusUnprocessableEntity, "subject has no question table")
	default:
		h.log.Error("question request failed", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
