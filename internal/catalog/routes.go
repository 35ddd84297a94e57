package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/examdesk/examdesk/internal/api/render"
	"github.com/examdesk/examdesk/internal/rbac"
)

/*
Routes exposes CRUD for the school catalog: class levels, subjects (and their
chapters) and schools. Reads need catalog:view, writes catalog:edit.

Mount it under /api/catalog behind the JWT middleware:

	r.Mount("/catalog", catalog.Routes(store, log))
*/
func Routes(store Store, log *zap.Logger) http.Handler {
	h := handlers{store: store, log: log}
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(rbac.Require("catalog:view"))
		r.Get("/class-levels", h.listClassLevels)
		r.Get("/class-levels/{id}", h.getClassLevel)
		r.Get("/subjects", h.listSubjects)
		r.Get("/subjects/{id}", h.getSubject)
		r.Get("/subjects/{id}/chapters", h.listChapters)
		r.Get("/schools", h.listSchools)
		r.Get("/schools/{id}", h.getSchool)
	})

	r.Group(func(r chi.Router) {
		r.Use(rbac.Require("catalog:edit"))
		r.Post("/class-levels", h.createClassLevel)
		r.Put("/class-levels/{id}", h.updateClassLevel)
		r.Delete("/class-levels/{id}", h.deleteClassLevel)
		r.Post("/subjects", h.createSubject)
		r.Put("/subjects/{id}", h.updateSubject)
		r.Delete("/subjects/{id}", h.deleteSubject)
		r.Post("/subjects/{id}/chapters", h.createChapter)
		r.Delete("/chapters/{id}", h.deleteChapter)
		r.Post("/schools", h.createSchool)
		r.Put("/schools/{id}", h.updateSchool)
		r.Delete("/schools/{id}", h.deleteSchool)
	})
	return r
}

type handlers struct {
	store Store
	log   *zap.Logger
}

// ---- class levels ----

func (h handlers) listClassLevels(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListClassLevels(r.Context(), listOpts(r))
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) getClassLevel(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.GetClassLevel(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) createClassLevel(w http.ResponseWriter, r *http.Request) {
	var in ClassLevel
	if !render.Decode(w, r, &in) {
		return
	}
	out, err := h.store.CreateClassLevel(r.Context(), in)
	h.respond(w, http.StatusCreated, out, err)
}

func (h handlers) updateClassLevel(w http.ResponseWriter, r *http.Request) {
	var in ClassLevel
	if !render.Decode(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "id")
	out, err := h.store.UpdateClassLevel(r.Context(), in)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) deleteClassLevel(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusNoContent, nil, h.store.DeleteClassLevel(r.Context(), chi.URLParam(r, "id")))
}

// ---- subjects ----

func (h handlers) listSubjects(w http.ResponseWriter, r *http.Request) {
	opts := listOpts(r)
	opts.ClassLevelID = r.URL.Query().Get("class_level_id")
	out, err := h.store.ListSubjects(r.Context(), opts)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) getSubject(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.GetSubject(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) createSubject(w http.ResponseWriter, r *http.Request) {
	var in Subject
	if !render.Decode(w, r, &in) {
		return
	}
	out, err := h.store.CreateSubject(r.Context(), in)
	h.respond(w, http.StatusCreated, out, err)
}

func (h handlers) updateSubject(w http.ResponseWriter, r *http.Request) {
	var in Subject
	if !render.Decode(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "id")
	out, err := h.store.UpdateSubject(r.Context(), in)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) deleteSubject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusNoContent, nil, h.store.DeleteSubject(r.Context(), chi.URLParam(r, "id")))
}

func (h handlers) listChapters(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListChapters(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) createChapter(w http.ResponseWriter, r *http.Request) {
	var in Chapter
	if !render.Decode(w, r, &in) {
		return
	}
	in.SubjectID = chi.URLParam(r, "id")
	out, err := h.store.CreateChapter(r.Context(), in)
	h.respond(w, http.StatusCreated, out, err)
}

func (h handlers) deleteChapter(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusNoContent, nil, h.store.DeleteChapter(r.Context(), chi.URLParam(r, "id")))
}

// ---- schools ----

func (h handlers) listSchools(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.ListSchools(r.Context(), listOpts(r))
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) getSchool(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.GetSchool(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) createSchool(w http.ResponseWriter, r *http.Request) {
	in := School{IsActive: true}
	if !render.Decode(w, r, &in) {
		return
	}
	out, err := h.store.CreateSchool(r.Context(), in)
	h.respond(w, http.StatusCreated, out, err)
}

func (h handlers) updateSchool(w http.ResponseWriter, r *http.Request) {
	in := School{IsActive: true}
	if !render.Decode(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "id")
	out, err := h.store.UpdateSchool(r.Context(), in)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) deleteSchool(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusNoContent, nil, h.store.DeleteSchool(r.Context(), chi.URLParam(r, "id")))
}

// ---- helpers ----

func listOpts(r *http.Request) ListOpts {
	q := r.URL.Query()
	return ListOpts{
		Q:      q.Get("q"),
		Limit:  render.IntParam(r, "limit", 0),
		Offset: render.IntParam(r, "offset", 0),
	}
}

func (h handlers) respond(w http.ResponseWriter, status int, v any, err error) {
	switch {
	case err == nil && status == http.StatusNoContent:
		w.WriteHeader(status)
	case err == nil:
		render.JSON(w, status, v)
	case errors.Is(err, ErrNotFound):
		render.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrConflict):
		render.Error(w, http.StatusConflict, "conflicts with existing data")
	default:
		h.log.Error("catalog request failed", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
