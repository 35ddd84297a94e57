package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examdesk/examdesk/internal/db/dbtest"
	"github.com/examdesk/examdesk/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("s3cret", time.Hour)
	tok, err := a.IssueJWT("u-1", rbac.RoleTeacher)
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.Sub)
	assert.Equal(t, rbac.RoleTeacher, c.Role)

	_, err = NewAuthService("other", time.Hour).Parse(tok)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	a := NewAuthService("s3cret", time.Nanosecond)
	tok, err := a.IssueJWT("u-1", rbac.RoleAdmin)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = a.Parse(tok)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("s3cret", time.Hour)
	var gotSub, gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"missing bearer token"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())

	tok, _ := a.IssueJWT("u-9", rbac.RoleStudent)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-9", gotSub)
	assert.Equal(t, rbac.RoleStudent, gotRole)
}

func TestAttachRoleFromDB(t *testing.T) {
	dbh := dbtest.New(t)
	_, err := dbh.Exec(`INSERT INTO users (id,email,username,password_hash,role,is_active,created_at)
		VALUES ('u-1','a@x.io','a','h','teacher',TRUE,1), ('u-2','b@x.io','b','h','admin',FALSE,1)`)
	require.NoError(t, err)

	a := NewAuthService("s3cret", time.Hour)
	var gotRole string
	h := JWTMiddleware(a)(AttachRoleFromDB(dbh, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = rbac.RoleFromContext(r.Context())
	})))

	var body string
	call := func(sub, claimed string) int {
		tok, _ := a.IssueJWT(sub, claimed)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		body = rec.Body.String()
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("u-1", rbac.RoleAdmin))
	assert.Equal(t, rbac.RoleTeacher, gotRole, "stored role wins over claim")
	assert.Equal(t, http.StatusForbidden, call("u-2", rbac.RoleAdmin), "inactive user")
	assert.JSONEq(t, `{"error":"forbidden"}`, body)
	assert.Equal(t, http.StatusForbidden, call("u-404", rbac.RoleAdmin), "unknown user")
}
