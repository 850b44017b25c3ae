package handlers

import (
	"codegen-app/internal/app"
	"codegen-app/internal/apperr"
	"codegen-app/internal/auth"
	"codegen-app/internal/logger"
	"codegen-app/pkg/validation"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Request/Response types

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type CreateAppRequest struct {
	Name           string `json:"name"`
	GenerationType string `json:"generation_type"`
}

type AppResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	GenerationType string     `json:"generation_type"`
	DeployKey      *string    `json:"deploy_key,omitempty"`
	DeployedAt     *time.Time `json:"deployed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type DeployResponse struct {
	URL string `json:"url"`
}

type TurnData struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Incomplete bool      `json:"incomplete,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Turns      []TurnData `json:"turns"`
	NextCursor *time.Time `json:"next_cursor,omitempty"`
	HasMore    bool       `json:"has_more"`
}

// Handlers serves the HTTP API on top of the application's services
type Handlers struct {
	config        *app.Config
	authValidator *validation.AuthRequestValidator
	appValidator  *validation.AppRequestValidator
}

// NewHandlers creates a new Handlers
func NewHandlers(config *app.Config) *Handlers {
	return &Handlers{
		config:        config,
		authValidator: validation.NewAuthRequestValidator(),
		appValidator:  validation.NewAppRequestValidator(),
	}
}

// HealthHandler reports liveness
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Helper methods

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.WithError(err).Warn("Failed to encode response")
	}
}

// sendServiceError maps a pipeline error kind onto a status code and JSON body
func (h *Handlers) sendServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := apperr.StatusCode(err)
	fields := logrus.Fields{"path": r.URL.Path, "status": status, "kind": apperr.Kind(err)}
	if status >= http.StatusInternalServerError {
		logger.Log.WithFields(fields).WithError(err).Error(message)
	} else {
		logger.Log.WithFields(fields).WithError(err).Info(message)
	}
	auth.SendError(w, status, message, err)
}

func (h *Handlers) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	caller, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		auth.SendError(w, http.StatusUnauthorized, "Not authenticated", nil)
	}
	return caller, ok
}
