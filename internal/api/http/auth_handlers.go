package http

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/examdesk/examdesk/internal/api/render"
	authmw "github.com/examdesk/examdesk/internal/auth/middleware"
	"github.com/examdesk/examdesk/internal/users"
	"github.com/examdesk/examdesk/internal/validate"
)

type tokenResp struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        users.User `json:"user"`
}

// SignupHandler registers a student account and logs it in.
func SignupHandler(store users.Store, authSvc *authmw.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.SignupRequest
		if !render.Decode(w, r, &req) {
			return
		}
		u, err := store.Signup(r.Context(), req)
		if err != nil {
			userError(w, log, err)
			return
		}
		issue(w, log, authSvc, u, http.StatusCreated)
	}
}

// SigninHandler exchanges an email or username and password for a token.
func SigninHandler(store users.Store, authSvc *authmw.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.SigninRequest
		if !render.Decode(w, r, &req) {
			return
		}
		u, err := store.Authenticate(r.Context(), req.Login, req.Password)
		if err != nil {
			userError(w, log, err)
			return
		}
		issue(w, log, authSvc, u, http.StatusOK)
	}
}

func issue(w http.ResponseWriter, log *zap.Logger, authSvc *authmw.AuthService, u users.User, status int) {
	tok, err := authSvc.IssueJWT(u.ID, u.Role)
	if err != nil {
		log.Error("issue token", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	render.JSON(w, status, tokenResp{AccessToken: tok, TokenType: "Bearer", User: u})
}

// MeHandler returns the caller's own account.
func MeHandler(store users.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := store.Get(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			userError(w, log, err)
			return
		}
		render.JSON(w, http.StatusOK, u)
	}
}

// ChangePasswordHandler lets the caller replace their own password.
func ChangePasswordHandler(store users.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req users.PasswordChange
		if !render.Decode(w, r, &req) {
			return
		}
		err := store.ChangePassword(r.Context(), authmw.SubjectFromContext(r.Context()), req)
		if errors.Is(err, users.ErrBadCredentials) {
			render.Error(w, http.StatusForbidden, "incorrect old password")
			return
		}
		if err != nil {
			userError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func userError(w http.ResponseWriter, log *zap.Logger, err error) {
	if _, ok := validate.As(err); ok {
		render.Validation(w, err)
		return
	}
	switch {
	case errors.Is(err, users.ErrBadCredentials):
		render.Error(w, http.StatusUnauthorized, users.ErrBadCredentials.Error())
	case errors.Is(err, users.ErrNotFound):
		render.Error(w, http.StatusNotFound, users.ErrNotFound.Error())
	case errors.Is(err, users.ErrConflict):
		render.Error(w, http.StatusConflict, users.ErrConflict.Error())
	case errors.Is(err, users.ErrLastAdmin):
		render.Error(w, http.StatusBadRequest, users.ErrLastAdmin.Error())
	default:
		log.Error("user request failed", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
