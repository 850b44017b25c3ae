package postgres

import (
	"codegen-app/internal/logger"
	"codegen-app/internal/repository/db"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AddTurn inserts one conversation turn. Turns are never updated afterwards.
func (p *PostgresDB) AddTurn(ctx context.Context, turn db.ConversationTurn) (*db.ConversationTurn, error) {
	conn := p.conn

	turn.ID = uuid.New().String()

	query := `
	INSERT INTO conversation_turns (id, application_id, user_id, role, content, incomplete)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at
	`

	err := conn.QueryRowContext(ctx, query, turn.ID, turn.ApplicationID, turn.UserID, turn.Role, turn.Content, turn.Incomplete).Scan(&turn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error adding conversation turn: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"app_id":     turn.ApplicationID,
		"role":       turn.Role,
		"chars":      len(turn.Content),
		"incomplete": turn.Incomplete,
	}).Debug("Added conversation turn")

	return &turn, nil
}

// ListTurns retrieves up to limit turns newest-first, optionally strictly before a cursor
func (p *PostgresDB) ListTurns(ctx context.Context, appID string, before *time.Time, limit int) ([]db.ConversationTurn, error) {
	conn := p.conn

	query := `
	SELECT id, application_id, user_id, role, content, incomplete, created_at
	FROM conversation_turns
	WHERE application_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
	ORDER BY created_at DESC
	LIMIT $3
	`

	rows, err := conn.QueryContext(ctx, query, appID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying conversation turns: %w", err)
	}
	defer rows.Close()

	var turns []db.ConversationTurn
	for rows.Next() {
		var turn db.ConversationTurn
		if err := rows.Scan(&turn.ID, &turn.ApplicationID, &turn.UserID, &turn.Role, &turn.Content, &turn.Incomplete, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation turn: %w", err)
		}
		turns = append(turns, turn)
	}

	return turns, rows.Err()
}
