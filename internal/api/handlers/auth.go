package handlers

import (
	"codegen-app/internal/apperr"
	"codegen-app/internal/auth"
	"codegen-app/internal/logger"
	"codegen-app/internal/repository/postgres"
	"encoding/json"
	"errors"
	"net/http"
)

// LoginHandler exchanges a username and password for a bearer token
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.SendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.authValidator.ValidateLoginRequest(req.Username, req.Password); err != nil {
		auth.SendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	user, err := h.config.DB.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			auth.SendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
			return
		}
		h.sendServiceError(w, r, "Error looking up user", err)
		return
	}

	if !postgres.VerifyPassword(user, req.Password) {
		logger.Log.WithField("username", req.Username).Info("Rejected login")
		auth.SendError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.config.Tokens.GenerateToken(user)
	if err != nil {
		auth.SendError(w, http.StatusInternalServerError, "Error generating token", err)
		return
	}

	logger.Log.WithField("username", user.Username).Info("User logged in")
	h.writeJSON(w, http.StatusOK, LoginResponse{Token: token, Username: user.Username, Role: user.Role})
}

// RegisterHandler creates a user account and logs it in
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.SendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.authValidator.ValidateRegisterRequest(req.Username, req.Email, req.Password); err != nil {
		auth.SendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	user, err := h.config.DB.CreateUser(r.Context(), req.Username, req.Email, req.Password, "")
	if err != nil {
		if errors.Is(err, postgres.ErrUsernameTaken) {
			auth.SendError(w, http.StatusConflict, "Username already exists", err)
			return
		}
		h.sendServiceError(w, r, "Error creating user", err)
		return
	}

	token, err := h.config.Tokens.GenerateToken(user)
	if err != nil {
		auth.SendError(w, http.StatusInternalServerError, "Error generating token", err)
		return
	}

	logger.Log.WithField("username", user.Username).Info("User registered")
	h.writeJSON(w, http.StatusCreated, LoginResponse{Token: token, Username: user.Username, Role: user.Role})
}
