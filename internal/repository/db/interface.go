package db

import (
	"context"
	"time"
)

// Database defines the interface for all database operations
// This allows for easier testing through mocking and decouples the services from the specific database implementation
type Database interface {
	// Users
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, username, email, password, role string) (*User, error)

	// Applications
	GetApplication(ctx context.Context, id string) (*Application, error)
	CreateApplication(ctx context.Context, userID, name, generationType string) (*Application, error)
	DeployKeyExists(ctx context.Context, deployKey string) (bool, error)
	ListDeployKeys(ctx context.Context) ([]string, error)
	UpdateDeployment(ctx context.Context, appID, deployKey string, deployedAt time.Time) error

	// Conversation turns
	AddTurn(ctx context.Context, turn ConversationTurn) (*ConversationTurn, error)
	// ListTurns returns up to limit turns of an application newest-first.
	// When before is set only turns created strictly before it are returned.
	ListTurns(ctx context.Context, appID string, before *time.Time, limit int) ([]ConversationTurn, error)
}
