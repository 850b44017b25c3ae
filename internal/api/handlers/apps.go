package handlers

import (
	"codegen-app/internal/auth"
	"codegen-app/internal/logger"
	"codegen-app/internal/repository/db"
	"codegen-app/internal/service/deploy"
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// CreateAppHandler creates an application owned by the caller
func (h *Handlers) CreateAppHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req CreateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.SendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	genType, err := h.appValidator.ValidateCreateApp(req.Name, req.GenerationType)
	if err != nil {
		h.sendServiceError(w, r, "Validation failed", err)
		return
	}

	created, err := h.config.DB.CreateApplication(r.Context(), caller.UserID, req.Name, genType.String())
	if err != nil {
		h.sendServiceError(w, r, "Error creating application", err)
		return
	}

	logger.Log.WithFields(logrus.Fields{"app_id": created.ID, "user_id": caller.UserID, "generation_type": genType.String()}).Info("Application created")
	h.writeJSON(w, http.StatusCreated, toAppResponse(created))
}

// DeployHandler builds if needed and publishes the application's generated code
func (h *Handlers) DeployHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	url, err := h.config.Deployer.Deploy(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		h.sendServiceError(w, r, "Deployment failed", err)
		return
	}

	h.writeJSON(w, http.StatusOK, DeployResponse{URL: url})
}

// HistoryHandler returns one page of the application's conversation, newest first
func (h *Handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.identity(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	pageSize, cursor, err := h.appValidator.ParseHistoryQuery(query.Get("pageSize"), query.Get("lastCreateTime"))
	if err != nil {
		h.sendServiceError(w, r, "Validation failed", err)
		return
	}

	page, err := h.config.Memory.PageByCursor(r.Context(), r.PathValue("id"), pageSize, cursor, caller)
	if err != nil {
		h.sendServiceError(w, r, "Error retrieving history", err)
		return
	}

	turns := make([]TurnData, 0, len(page.Turns))
	for _, t := range page.Turns {
		turns = append(turns, TurnData{
			ID:         t.ID,
			Role:       t.Role,
			Content:    t.Content,
			Incomplete: t.Incomplete,
			CreatedAt:  t.CreatedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, HistoryResponse{Turns: turns, NextCursor: page.NextCursor, HasMore: page.HasMore})
}

// SiteHandler serves a published snapshot from the deploy root
func (h *Handlers) SiteHandler(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !deploy.ValidKey(key) {
		http.NotFound(w, r)
		return
	}

	dir := filepath.Join(h.config.Deployer.Root(), key)
	http.StripPrefix("/sites/"+key, http.FileServer(http.Dir(dir))).ServeHTTP(w, r)
}

// SiteRedirectHandler adds the trailing slash so relative asset paths resolve under the key
func (h *Handlers) SiteRedirectHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/sites/"+r.PathValue("key")+"/", http.StatusMovedPermanently)
}

func toAppResponse(a *db.Application) AppResponse {
	return AppResponse{
		ID:             a.ID,
		Name:           a.Name,
		GenerationType: a.GenerationType,
		DeployKey:      a.DeployKey,
		DeployedAt:     a.DeployedAt,
		CreatedAt:      a.CreatedAt,
	}
}
