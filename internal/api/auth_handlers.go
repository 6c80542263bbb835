package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"clipforge/internal/auth"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
)

const minPasswordLength = 8

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		s.respondError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user, err := s.store.CreateUser(r.Context(), email, hash)
	if err != nil {
		if errors.Is(err, jobs.ErrEmailTaken) {
			s.respondError(w, http.StatusConflict, "email already registered")
			return
		}
		s.logger.Error("create user failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.logger.Error("issue token failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	s.respondData(w, http.StatusCreated, authResponse{UserID: user.ID, Email: user.Email, Token: token})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		s.respondError(w, http.StatusBadRequest, "email and password required")
		return
	}

	ctx := r.Context()
	blocked, err := s.loginLimiter.Blocked(ctx, email)
	if err != nil {
		s.logger.Error("login limiter check failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if blocked {
		s.respondError(w, http.StatusTooManyRequests, "too many failed attempts, try again later")
		return
	}

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		s.logger.Error("load user failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		if err := s.loginLimiter.RecordFailure(ctx, email); err != nil {
			s.logger.Error("record login failure failed", logging.Error(err))
		}
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := s.loginLimiter.Reset(ctx, email); err != nil {
		s.logger.Error("reset login failures failed", logging.Error(err))
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.logger.Error("issue token failed", logging.Error(err))
		s.respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.respondData(w, http.StatusOK, authResponse{UserID: user.ID, Email: user.Email, Token: token})
}
