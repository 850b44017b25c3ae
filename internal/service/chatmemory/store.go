// Package chatmemory keeps the append-only conversation log of each application
// and rebuilds the recent context window sent to the model.
package chatmemory

import (
	"codegen-app/internal/apperr"
	"codegen-app/internal/auth"
	"codegen-app/internal/logger"
	"codegen-app/internal/repository/db"
	"codegen-app/internal/service/llm"
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxPageSize caps PageByCursor when no maximum is configured
const DefaultMaxPageSize = 50

// Page is one page of history, newest first
type Page struct {
	Turns      []db.ConversationTurn `json:"turns"`
	NextCursor *time.Time            `json:"nextCursor,omitempty"`
	HasMore    bool                  `json:"hasMore"`
}

// AppendOption adjusts a turn before it is stored
type AppendOption func(*db.ConversationTurn)

// Incomplete marks an assistant turn whose stream failed before finishing
func Incomplete() AppendOption {
	return func(t *db.ConversationTurn) {
		t.Incomplete = true
	}
}

// Store handles the business logic for conversation memory
type Store struct {
	db          db.Database
	maxPageSize int
}

// NewStore creates a new Store. maxPageSize <= 0 selects DefaultMaxPageSize.
func NewStore(database db.Database, maxPageSize int) *Store {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return &Store{
		db:          database,
		maxPageSize: maxPageSize,
	}
}

func validRole(role string) bool {
	return role == db.TurnRoleUser || role == db.TurnRoleAssistant
}

// Append stores one turn
func (s *Store) Append(ctx context.Context, appID, ownerID, role, text string, opts ...AppendOption) (*db.ConversationTurn, error) {
	if appID == "" || ownerID == "" {
		return nil, fmt.Errorf("%w: application and owner ids are required", apperr.ErrValidation)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: turn text must not be empty", apperr.ErrValidation)
	}
	if !validRole(role) {
		return nil, fmt.Errorf("%w: unknown turn role %q", apperr.ErrValidation, role)
	}

	turn := db.ConversationTurn{
		ApplicationID: appID,
		UserID:        ownerID,
		Role:          role,
		Content:       text,
	}
	for _, opt := range opts {
		opt(&turn)
	}

	stored, err := s.db.AddTurn(ctx, turn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to append turn: %w", apperr.ErrStorage, err)
	}

	return stored, nil
}

// LoadRecentWindow clears window and fills it with the newest maxCount turns in
// chronological order. On any failure the window is left empty and the count is zero.
func (s *Store) LoadRecentWindow(ctx context.Context, appID string, maxCount int, window *Window) (int, error) {
	if window == nil {
		return 0, fmt.Errorf("%w: window is required", apperr.ErrValidation)
	}
	window.Clear()

	if appID == "" {
		return 0, fmt.Errorf("%w: application id is required", apperr.ErrValidation)
	}
	if maxCount <= 0 {
		return 0, fmt.Errorf("%w: max count must be positive, got %d", apperr.ErrValidation, maxCount)
	}

	turns, err := s.db.ListTurns(ctx, appID, nil, maxCount)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to load history: %w", apperr.ErrStorage, err)
	}

	// Convert everything before touching the window so a bad row leaves it empty
	messages := make([]llm.Message, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		msg, err := toMessage(turns[i])
		if err != nil {
			return 0, err
		}
		messages = append(messages, msg)
	}

	for _, msg := range messages {
		window.Add(msg)
	}

	logger.Log.WithFields(logrus.Fields{"app_id": appID, "loaded": len(messages)}).Info("Loaded chat history into window")
	return len(messages), nil
}

func toMessage(t db.ConversationTurn) (llm.Message, error) {
	switch t.Role {
	case db.TurnRoleUser:
		return llm.Message{Role: llm.RoleUser, Content: t.Content}, nil
	case db.TurnRoleAssistant:
		return llm.Message{Role: llm.RoleAssistant, Content: t.Content}, nil
	default:
		return llm.Message{}, fmt.Errorf("%w: turn %s has unknown role %q", apperr.ErrValidation, t.ID, t.Role)
	}
}

// PageByCursor returns turns strictly older than lastCreateTime, newest first.
// A nil cursor returns the newest page. Only the owner or an admin may read.
func (s *Store) PageByCursor(ctx context.Context, appID string, pageSize int, lastCreateTime *time.Time, caller auth.Identity) (*Page, error) {
	if appID == "" {
		return nil, fmt.Errorf("%w: application id is required", apperr.ErrValidation)
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: page size must be positive, got %d", apperr.ErrValidation, pageSize)
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	app, err := s.db.GetApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(app) && !caller.IsAdmin() {
		return nil, fmt.Errorf("%w: user %s may not read history of application %s", apperr.ErrAuthorization, caller.UserID, appID)
	}

	// Fetch one extra row to learn whether an older page exists
	turns, err := s.db.ListTurns(ctx, appID, lastCreateTime, pageSize+1)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list history: %w", apperr.ErrStorage, err)
	}

	page := &Page{Turns: turns}
	if len(turns) > pageSize {
		page.Turns = turns[:pageSize]
		page.HasMore = true
	}
	if page.Turns == nil {
		page.Turns = []db.ConversationTurn{}
	}
	if n := len(page.Turns); n > 0 {
		cursor := page.Turns[n-1].CreatedAt
		page.NextCursor = &cursor
	}

	return page, nil
}
