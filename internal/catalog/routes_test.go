package catalog

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/examdesk/examdesk/internal/api/render"
	"github.com/examdesk/examdesk/internal/db/dbtest"
	"github.com/examdesk/examdesk/internal/rbac"
)

func do(t *testing.T, h http.Handler, role, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(rbac.WithRole(req.Context(), role))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutesCRUD(t *testing.T) {
	h := Routes(NewSQLStore(dbtest.New(t)), zap.NewNop())

	rec := do(t, h, rbac.RoleAdmin, http.MethodPost, "/class-levels", map[string]any{"name": "Grade 7", "ordinal": 7})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cl ClassLevel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cl))

	rec = do(t, h, rbac.RoleAdmin, http.MethodPost, "/subjects", map[string]any{"name": "Biology", "class_level_id": cl.ID, "question_table": "bio 7"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var e render.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "question_table", e.Fields[0].Field)

	rec = do(t, h, rbac.RoleAdmin, http.MethodPost, "/schools", map[string]any{"name": "Lakeview"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "code required")

	rec = do(t, h, rbac.RoleAdmin, http.MethodPost, "/schools", map[string]any{"name": "Lakeview", "code": "LV"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sc School
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sc))
	assert.True(t, sc.IsActive, "schools default to active")

	rec = do(t, h, rbac.RoleTeacher, http.MethodGet, "/schools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var schools []School
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &schools))
	assert.Len(t, schools, 1)

	rec = do(t, h, rbac.RoleTeacher, http.MethodDelete, "/schools/"+sc.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, rbac.RoleAdmin, http.MethodDelete, "/schools/"+sc.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, rbac.RoleAdmin, http.MethodGet, "/schools/"+sc.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, rbac.RoleStudent, http.MethodGet, "/class-levels", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
