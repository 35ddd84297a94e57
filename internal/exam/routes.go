package exam

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/examdesk/examdesk/internal/api/render"
	authmw "github.com/examdesk/examdesk/internal/auth/middleware"
	"github.com/examdesk/examdesk/internal/question"
	"github.com/examdesk/examdesk/internal/rbac"
	"github.com/examdesk/examdesk/internal/validate"
)

type handlers struct {
	store   Store
	preview *Previewer
	log     *zap.Logger
}

// StructureRoutes serves /api/exam-structures.
func StructureRoutes(store Store, preview *Previewer, log *zap.Logger) http.Handler {
	h := handlers{store: store, preview: preview, log: log}
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(rbac.Require("structures:view"))
		r.Get("/", h.listStructures)
		r.Get("/{id}", h.getStructure)
	})
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require("structures:edit"))
		r.Post("/", h.createStructure)
		r.Put("/{id}", h.updateStructure)
		r.Delete("/{id}", h.deleteStructure)
	})
	r.With(rbac.Require("preview:view")).Get("/{id}/preview", h.previewStructure)
	return r
}

// ScheduleRoutes serves /api/scheduled-exams.
func ScheduleRoutes(store Store, preview *Previewer, log *zap.Logger) http.Handler {
	h := handlers{store: store, preview: preview, log: log}
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(rbac.Require("scheduled:view"))
		r.Get("/", h.listScheduled)
		r.Get("/board", h.board)
		r.Get("/{id}", h.getScheduled)
	})
	r.Group(func(r chi.Router) {
		r.Use(rbac.Require("scheduled:edit"))
		r.Post("/", h.createScheduled)
		r.Put("/{id}", h.updateScheduled)
		r.Delete("/{id}", h.deleteScheduled)
		r.Post("/{id}/status", h.setStatus)
	})
	r.With(rbac.Require("preview:view")).Get("/{id}/preview", h.previewScheduled)
	return r
}

// ---- structures ----

func (h handlers) listStructures(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.store.ListStructures(r.Context(), StructureListOpts{
		Q:            q.Get("q"),
		SubjectID:    q.Get("subject_id"),
		ClassLevelID: q.Get("class_level_id"),
		Limit:        render.IntParam(r, "limit", 0),
		Offset:       render.IntParam(r, "offset", 0),
	})
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) getStructure(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.GetStructure(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) createStructure(w http.ResponseWriter, r *http.Request) {
	var in Structure
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		render.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	out, err := h.store.CreateStructure(r.Context(), in)
	h.respond(w, http.StatusCreated, out, err)
}

func (h handlers) updateStructure(w http.ResponseWriter, r *http.Request) {
	var in Structure
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		render.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	in.ID = chi.URLParam(r, "id")
	out, err := h.store.UpdateStructure(r.Context(), in)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) deleteStructure(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusNoContent, nil, h.store.DeleteStructure(r.Context(), chi.URLParam(r, "id")))
}

func (h handlers) previewStructure(w http.ResponseWriter, r *http.Request) {
	out, err := h.preview.PreviewStructure(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, out, err)
}

// ---- scheduled exams ----

func (h handlers) scheduledOpts(w http.ResponseWriter, r *http.Request) (ScheduledListOpts, bool) {
	q := r.URL.Query()
	opts := ScheduledListOpts{
		SchoolID: q.Get("school_id"),
		Status:   q.Get("status"),
		Limit:    render.IntParam(r, "limit", 0),
		Offset:   render.IntParam(r, "offset", 0),
	}
	var err error
	if opts.From, err = parseTime(q.Get("from")); err != nil {
		render.Error(w, http.StatusBadRequest, "from: expected unix seconds or RFC 3339")
		return opts, false
	}
	if opts.To, err = parseTime(q.Get("to")); err != nil {
		render.Error(w, http.StatusBadRequest, "to: expected unix seconds or RFC 3339")
		return opts, false
	}
	return opts, true
}

func (h handlers) listScheduled(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.scheduledOpts(w, r)
	if !ok {
		return
	}
	out, err := h.store.ListScheduled(r.Context(), opts)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) board(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.scheduledOpts(w, r)
	if !ok {
		return
	}
	out, err := h.store.Board(r.Context(), opts)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) getScheduled(w http.ResponseWriter, r *http.Request) {
	out, err := h.store.GetScheduled(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) createScheduled(w http.ResponseWriter, r *http.Request) {
	var in ScheduledExam
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		render.Error(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	in.CreatedBy = authmw.SubjectFromContext(r.Context())
	out, err := h.store.CreateScheduled(r.Context(), in)
	h.respond(w, http.StatusCreated, out, err)
}

// updateScheduled applies the body on top of the stored exam.
func (h handlers) updateScheduled(w http.ResponseWriter, r *http.Request) {
	cur, err := h.store.GetScheduled(r.Context(), chi.URLParam(r, "id"))
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
	out, err := h.store.UpdateScheduled(r.Context(), cur)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) deleteScheduled(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusNoContent, nil, h.store.DeleteScheduled(r.Context(), chi.URLParam(r, "id")))
}

type statusReq struct {
	Status string `json:"status" validate:"required,oneof=scheduled in_progress completed cancelled"`
}

func (h handlers) setStatus(w http.ResponseWriter, r *http.Request) {
	var in statusReq
	if !render.Decode(w, r, &in) {
		return
	}
	out, err := h.store.SetStatus(r.Context(), chi.URLParam(r, "id"), in.Status)
	h.respond(w, http.StatusOK, out, err)
}

func (h handlers) previewScheduled(w http.ResponseWriter, r *http.Request) {
	out, err := h.preview.Preview(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, http.StatusOK, out, err)
}

// ---- helpers ----

func parseTime(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
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
	case errors.Is(err, ErrInvalidID):
		render.Error(w, http.StatusBadRequest, "invalid id")
	case errors.Is(err, ErrNotFound):
		render.Error(w, http.StatusNotFound, ErrNotFound.Error())
	case errors.Is(err, ErrNoStructure):
		render.Error(w, http.StatusNotFound, ErrNoStructure.Error())
	case errors.Is(err, ErrNoSubject):
		render.Error(w, http.StatusNotFound, ErrNoSubject.Error())
	case errors.Is(err, question.ErrNoBank):
		render.Error(w, http.StatusNotFound, "no question table")
	case errors.Is(err, ErrConflict):
		render.Error(w, http.StatusConflict, "conflicts with existing data")
	default:
		h.log.Error("exam request failed", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
