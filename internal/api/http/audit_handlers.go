package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/examdesk/examdesk/internal/api/render"
	"github.com/examdesk/examdesk/internal/audit"
)

// AuditHandler lists audit events, newest first. Filter with ?key= (an
// entity id) and ?type=.
func AuditHandler(events *audit.EventRepo, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		out, err := events.List(r.Context(), audit.ListOpts{
			Key:    q.Get("key"),
			Type:   q.Get("type"),
			Limit:  render.IntParam(r, "limit", 0),
			Offset: render.IntParam(r, "offset", 0),
		})
		if err != nil {
			log.Error("list audit events", zap.Error(err))
			render.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		render.JSON(w, http.StatusOK, out)
	}
}
