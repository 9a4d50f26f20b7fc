package api

import (
	"errors"
	"net/http"

	"github.com/taskhive/taskhive/pkg/accounts"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/session"
)

// register handles POST /auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.accounts.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, accounts.ErrInvalidInput) {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if errors.Is(err, accounts.ErrEmailTaken) {
		httputil.WriteConflict(w, "email already registered")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("registration failed")
		httputil.WriteInternalError(w, errors.New("registration failed"))
		return
	}

	httputil.WriteCreated(w, user)
}

// login handles POST /auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	pair, err := s.accounts.Login(r.Context(), req.Email, req.Password, s.requestInfo(r))
	switch {
	case errors.Is(err, accounts.ErrThrottled):
		httputil.WriteTooManyRequests(w, "too many attempts")
	case errors.Is(err, accounts.ErrEmailNotVerified):
		httputil.WriteForbidden(w, "email not verified")
	case errors.Is(err, accounts.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, "invalid credentials")
	case err != nil:
		s.logger.WithError(err).Error("login failed")
		httputil.WriteInternalError(w, errors.New("login failed"))
	default:
		httputil.WriteSuccess(w, pair)
	}
}

// refresh handles POST /auth/refresh
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	pair, err := s.sessions.Rotate(r.Context(), req.RefreshToken, s.requestInfo(r))
	if errors.Is(err, session.ErrInvalidRefreshToken) {
		// Replay and garbage look identical from outside.
		httputil.WriteUnauthorized(w, "invalid refresh token")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("token rotation failed")
		httputil.WriteInternalError(w, errors.New("token rotation failed"))
		return
	}

	httputil.WriteSuccess(w, pair)
}

// logout handles POST /auth/logout (logout everywhere)
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.callerID(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if err := s.sessions.RevokeAll(r.Context(), userID); err != nil {
		s.logger.WithError(err).Error("logout failed")
		httputil.WriteInternalError(w, errors.New("logout failed"))
		return
	}
	httputil.WriteNoContent(w)
}

// googleSignIn handles POST /auth/google
func (s *Server) googleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	pair, err := s.accounts.GoogleSignIn(r.Context(), req.IDToken, s.requestInfo(r))
	if errors.Is(err, session.ErrInvalidGoogleToken) {
		httputil.WriteUnauthorized(w, "invalid google token")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("google sign-in failed")
		httputil.WriteInternalError(w, errors.New("google sign-in failed"))
		return
	}

	httputil.WriteSuccess(w, pair)
}

// requestPasswordReset handles POST /auth/password-reset/request
//
// The response is identical whether the address exists, is unknown, or is
// throttled. The reset token is delivered out of band.
func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	token, err := s.accounts.RequestPasswordReset(r.Context(), req.Email, middleware.ClientIP(r))
	if err != nil {
		s.logger.WithError(err).Error("password reset request failed")
		httputil.WriteInternalError(w, errors.New("password reset request failed"))
		return
	}
	if token != "" {
		// TODO: deliver via the notifications service once it lands instead
		// of logging the fact of issuance.
		s.logger.Info("password reset token issued")
	}

	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

// resetPassword handles POST /auth/password-reset
func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := s.accounts.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if errors.Is(err, accounts.ErrInvalidResetToken) {
		httputil.WriteUnauthorized(w, "invalid reset token")
		return
	}
	if errors.Is(err, accounts.ErrInvalidInput) {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("password reset failed")
		httputil.WriteInternalError(w, errors.New("password reset failed"))
		return
	}

	httputil.WriteNoContent(w)
}

func (s *Server) requestInfo(r *http.Request) session.RequestInfo {
	return session.RequestInfo{
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIP(r),
	}
}
