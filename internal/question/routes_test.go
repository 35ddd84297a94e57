package question

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

func TestQuestionRoutes(t *testing.T) {
	dbh := dbtest.New(t)
	seedSubject(t, dbh)
	h := Routes(NewSQLStore(dbh), zap.NewNop())

	rec := do(t, h, rbac.RoleTeacher, http.MethodPost, "/", map[string]any{
		"subject_id": "sub-1", "chapter_id": "ch-1", "type": "true_false",
		"text": "Zero is even", "correct_answer": "true", "marks": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q Question
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "true", q.CorrectAnswer, "staff see the answer key")

	rec = do(t, h, rbac.RoleTeacher, http.MethodPut, "/"+q.ID, map[string]any{"difficulty": "easy"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "easy", q.Difficulty)
	assert.Equal(t, "Zero is even", q.Text)

	rec = do(t, h, rbac.RoleTeacher, http.MethodPut, "/"+q.ID, map[string]any{"difficulty": "brutal"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var e render.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "difficulty", e.Fields[0].Field)

	rec = do(t, h, rbac.RoleStudent, http.MethodGet, "/"+q.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, rbac.RoleTeacher, http.MethodDelete, "/"+q.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, rbac.RoleTeacher, http.MethodGet, "/?subject_id=sub-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Question
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list, "deactivated questions are hidden by default")

	rec = do(t, h, rbac.RoleTeacher, http.MethodGet, "/?subject_id=sub-1&include_inactive=true", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(t, h, rbac.RoleTeacher, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuestionImportRoute(t *testing.T) {
	dbh := dbtest.New(t)
	seedSubject(t, dbh)
	h := Routes(NewSQLStore(dbh), zap.NewNop())

	rec := do(t, h, rbac.RoleTeacher, http.MethodPost, "/import", []map[string]any{
		{"subject_id": "sub-1", "type": "short_answer", "text": "Define a prime"},
		{"subject_id": "sub-1", "type": "fill_blank", "text": "2+2=__", "blanks": []string{"4"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"imported":2}`, rec.Body.String())

	rec = do(t, h, rbac.RoleTeacher, http.MethodPost, "/import", []map[string]any{
		{"subject_id": "sub-1", "type": "short_answer", "text": "ok"},
		{"subject_id": "sub-1", "type": "fill_blank", "text": "no blanks"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var e render.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Contains(t, e.Error, "row 1")

	rec = do(t, h, rbac.RoleTeacher, http.MethodPost, "/import", []map[string]any{
		{"subject_id": "sub-2", "type": "short_answer", "text": "no bank"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
