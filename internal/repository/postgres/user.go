package postgres

import (
	"codegen-app/internal/logger"
	"codegen-app/internal/repository/db"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrUsernameTaken is returned by CreateUser when the username is already registered
var ErrUsernameTaken = errors.New("username already exists")

// CreateUser creates a new user with hashed password
func (p *PostgresDB) CreateUser(ctx context.Context, username, email, password, role string) (*db.User, error) {
	conn := p.conn

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	if role == "" {
		role = db.RoleUser
	}

	userID := uuid.New().String()
	var createdAt time.Time

	query := `
	INSERT INTO users (id, username, email, password_hash, role)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`

	err = conn.QueryRowContext(ctx, query, userID, username, email, string(hashedPassword), role).Scan(&userID, &createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"username": username, "user_id": userID, "role": role}).Info("Created new user")

	return &db.User{
		ID:           userID,
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
		CreatedAt:    createdAt,
	}, nil
}

// GetUserByUsername retrieves a user by username
func (p *PostgresDB) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	conn := p.conn

	var user db.User
	query := `SELECT id, username, email, password_hash, role, created_at FROM users WHERE username = $1`

	err := conn.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, db.ErrNotFound)
		}
		return nil, fmt.Errorf("error retrieving user: %w", err)
	}

	return &user, nil
}

// VerifyPassword checks if the provided password matches the user's hashed password
func VerifyPassword(user *db.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	return err == nil
}

// SeedDemoUser creates the demo user if it doesn't exist
func SeedDemoUser(ctx context.Context, database db.Database) error {
	// Check if demo user already exists
	_, err := database.GetUserByUsername(ctx, "demo")
	if err == nil {
		logger.Log.Info("Demo user already exists, skipping seed")
		return nil
	}

	// Create demo user
	_, err = database.CreateUser(ctx, "demo", "demo@example.com", "demo123", db.RoleUser)
	if err != nil && !errors.Is(err, ErrUsernameTaken) {
		return fmt.Errorf("error seeding demo user: %w", err)
	}

	logger.Log.Info("Demo user seeded successfully")
	return nil
}
