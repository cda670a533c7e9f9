package server

import (
	"net/http"

	"libmgmt/internal/security"
	"libmgmt/pkg/domain"
	"libmgmt/services/library/internal/app"
)

type registerRequest struct {
	Username  string `json:"username" validate:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"omitempty,email"`
	Password  string `json:"password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Success bool       `json:"success"`
	Token   string     `json:"token"`
	User    userView   `json:"user"`
	Reader  readerView `json:"reader,omitzero"`
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email" validate:"omitempty,email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, security.EventRegister, security.OutcomeRateLimited)
		return
	}
	var req registerRequest
	if !s.decode(w, r, &req) {
		s.audit(r, security.EventRegister, security.OutcomeFail, "reason", "invalid_request")
		return
	}
	reader, token, err := s.app.Register(r.Context(), app.AccountInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		s.audit(r, security.EventRegister, security.OutcomeFail, "reason", string(domain.KindOf(err)))
		writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventRegister, security.OutcomeSuccess, "user_id", reader.UserID)
	writeJSON(w, http.StatusCreated, authResponse{
		Success: true,
		Token:   token,
		User:    newUserView(reader.User),
		Reader:  newReaderView(reader),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, security.EventLogin, security.OutcomeRateLimited)
		return
	}
	var req loginRequest
	if !s.decode(w, r, &req) {
		s.audit(r, security.EventLogin, security.OutcomeFail, "reason", "invalid_request")
		return
	}
	user, token, err := s.app.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.audit(r, security.EventLogin, security.OutcomeFail, "reason", string(domain.KindOf(err)))
		writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventLogin, security.OutcomeSuccess, "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Success: true, Token: token, User: newUserView(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, security.EventLogout, security.OutcomeFail, "reason", "missing_token")
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		s.audit(r, security.EventLogout, security.OutcomeFail, "reason", "revoke_failed")
		writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventLogout, security.OutcomeSuccess)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	reader, err := s.app.Profile(r.Context(), user)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newReaderView(reader))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req updateProfileRequest
	if !s.decode(w, r, &req) {
		return
	}
	updated, err := s.app.UpdateProfile(r.Context(), user, app.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(updated))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, user domain.User) {
	if !s.allowRate(w, r, s.passwordLimiter, "too many password change attempts") {
		s.audit(r, security.EventPasswordChange, security.OutcomeRateLimited, "user_id", user.ID)
		return
	}
	var req changePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.app.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		s.audit(r, security.EventPasswordChange, security.OutcomeFail, "user_id", user.ID, "reason", string(domain.KindOf(err)))
		writeAppError(w, r, err)
		return
	}
	s.audit(r, security.EventPasswordChange, security.OutcomeSuccess, "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}
