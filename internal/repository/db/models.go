package db

import (
	"codegen-app/internal/apperr"
	"fmt"
	"time"
)

// ErrNotFound is returned by lookups that match no row. It matches apperr.ErrNotFound.
var ErrNotFound = fmt.Errorf("record %w", apperr.ErrNotFound)

// Roles a user can hold
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Conversation turn roles as stored in the database
const (
	TurnRoleUser      = "user"
	TurnRoleAssistant = "assistant"
)

// User represents a user in the database
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Application represents a user-owned generated application
type Application struct {
	ID             string
	UserID         string
	Name           string
	GenerationType string
	DeployKey      *string
	DeployedAt     *time.Time
	EditedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ConversationTurn represents one message exchanged for an application
type ConversationTurn struct {
	ID            string
	ApplicationID string
	UserID        string
	Role          string
	Content       string
	Incomplete    bool // set when the assistant stream failed before finishing
	CreatedAt     time.Time
}
