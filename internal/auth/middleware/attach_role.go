package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/examdesk/examdesk/internal/api/render"
	"github.com/examdesk/examdesk/internal/rbac"
)

// AttachRoleFromDB replaces the token's role with the role stored for the
// user, so demotions and deactivations apply before the token expires.
// allowClaimFallback=true keeps the claimed role on unexpected DB errors (dev only).
func AttachRoleFromDB(db *sqlx.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)

			var row struct {
				Role     string `db:"role"`
				IsActive bool   `db:"is_active"`
			}
			err := db.GetContext(ctx, &row, `SELECT role, is_active FROM users WHERE id=$1`, sub)

			switch {
			case err == nil && row.IsActive && row.Role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, row.Role)))
			case err == nil, errors.Is(err, sql.ErrNoRows):
				render.Error(w, http.StatusForbidden, "forbidden")
			default:
				if allowClaimFallback && rbac.RoleFromContext(ctx) != "" {
					next.ServeHTTP(w, r)
					return
				}
				render.Error(w, http.StatusForbidden, "forbidden")
			}
		})
	}
}
