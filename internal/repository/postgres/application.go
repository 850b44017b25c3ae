package postgres

import (
	"codegen-app/internal/apperr"
	"codegen-app/internal/logger"
	"codegen-app/internal/repository/db"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateApplication creates a new application owned by userID
func (p *PostgresDB) CreateApplication(ctx context.Context, userID, name, generationType string) (*db.Application, error) {
	conn := p.conn

	appID := uuid.New().String()
	var createdAt, updatedAt time.Time

	query := `
	INSERT INTO applications (id, user_id, name, generation_type)
	VALUES ($1, $2, $3, $4)
	RETURNING id, created_at, updated_at
	`

	err := conn.QueryRowContext(ctx, query, appID, userID, name, generationType).Scan(&appID, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating application: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"app_id": appID, "user_id": userID, "generation_type": generationType}).Info("Created new application")

	return &db.Application{
		ID:             appID,
		UserID:         userID,
		Name:           name,
		GenerationType: generationType,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// GetApplication retrieves an application by id
func (p *PostgresDB) GetApplication(ctx context.Context, id string) (*db.Application, error) {
	conn := p.conn

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("application %q: %w", id, db.ErrNotFound)
	}

	var app db.Application
	query := `
	SELECT id, user_id, name, generation_type, deploy_key, deployed_at, edited_at, created_at, updated_at
	FROM applications
	WHERE id = $1
	`

	err := conn.QueryRowContext(ctx, query, id).Scan(&app.ID, &app.UserID, &app.Name, &app.GenerationType,
		&app.DeployKey, &app.DeployedAt, &app.EditedAt, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("application %q: %w", id, db.ErrNotFound)
		}
		return nil, fmt.Errorf("error retrieving application: %w", err)
	}

	return &app, nil
}

// DeployKeyExists reports whether any application already holds deployKey
func (p *PostgresDB) DeployKeyExists(ctx context.Context, deployKey string) (bool, error) {
	conn := p.conn

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM applications WHERE deploy_key = $1)`

	if err := conn.QueryRowContext(ctx, query, deployKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking deploy key: %w", err)
	}

	return exists, nil
}

// ListDeployKeys returns every deploy key currently recorded
func (p *PostgresDB) ListDeployKeys(ctx context.Context) ([]string, error) {
	conn := p.conn

	rows, err := conn.QueryContext(ctx, `SELECT deploy_key FROM applications WHERE deploy_key IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("error querying deploy keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("error scanning deploy key: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// UpdateDeployment records the effective deploy key and deployment timestamps
func (p *PostgresDB) UpdateDeployment(ctx context.Context, appID, deployKey string, deployedAt time.Time) error {
	conn := p.conn

	query := `
	UPDATE applications
	SET deploy_key = $1, deployed_at = $2, edited_at = $2, updated_at = $2
	WHERE id = $3
	`

	res, err := conn.ExecContext(ctx, query, deployKey, deployedAt, appID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: deploy key %q already recorded: %w", apperr.ErrStorage, deployKey, err)
		}
		return fmt.Errorf("error updating deployment: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("application %q: %w", appID, db.ErrNotFound)
	}

	logger.Log.WithFields(logrus.Fields{"app_id": appID, "deploy_key": deployKey}).Info("Recorded deployment")
	return nil
}
