package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckerHas(t *testing.T) {
	c := NewChecker(nil)
	assert.True(t, c.Has(RoleAdmin, "catalog:edit"))
	assert.True(t, c.Has(RoleTeacher, "scheduled:edit"))
	assert.True(t, c.Has(RoleTeacher, "structures:view"))
	assert.False(t, c.Has(RoleTeacher, "catalog:edit"))
	assert.False(t, c.Has(RoleStudent, "preview:view"))
	assert.False(t, c.Has("ghost", "me:view"))
	assert.True(t, c.Any(RoleStudent, "preview:view", "me:view"))
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require("preview:view")(ok)

	for role, want := range map[string]int{
		"":          http.StatusForbidden,
		RoleStudent: http.StatusForbidden,
		RoleTeacher: http.StatusNoContent,
		RoleAdmin:   http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(context.Background(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
		if want == http.StatusForbidden {
			assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String(), role)
		}
	}
}
