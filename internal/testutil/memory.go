package testutil

import (
	"codegen-app/internal/apperr"
	"codegen-app/internal/repository/db"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDatabase is an in-memory db.Database. Turn timestamps come from a
// strictly increasing clock so ordering is deterministic.
type MemoryDatabase struct {
	mu    sync.Mutex
	users map[string]db.User
	apps  map[string]db.Application
	turns []db.ConversationTurn
	clock time.Time
}

var _ db.Database = (*MemoryDatabase)(nil)

// NewMemoryDatabase creates an empty in-memory store
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		users: make(map[string]db.User),
		apps:  make(map[string]db.Application),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *MemoryDatabase) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

// PutApplication inserts or replaces an application as-is
func (m *MemoryDatabase) PutApplication(app db.Application) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[app.ID] = app
}

// Turns returns a copy of every stored turn in insertion order
func (m *MemoryDatabase) Turns() []db.ConversationTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.ConversationTurn(nil), m.turns...)
}

func (m *MemoryDatabase) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, db.ErrNotFound)
}

// CreateUser stores the password verbatim as the hash; tests needing bcrypt use MockDatabase
func (m *MemoryDatabase) CreateUser(ctx context.Context, username, email, password, role string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := db.User{ID: uuid.New().String(), Username: username, Email: email, PasswordHash: password, Role: role, CreatedAt: m.tick()}
	m.users[u.ID] = u
	return &u, nil
}

func (m *MemoryDatabase) GetApplication(ctx context.Context, id string) (*db.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[id]
	if !ok {
		return nil, fmt.Errorf("application %q: %w", id, db.ErrNotFound)
	}
	return &app, nil
}

func (m *MemoryDatabase) CreateApplication(ctx context.Context, userID, name, generationType string) (*db.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	app := db.Application{ID: uuid.New().String(), UserID: userID, Name: name, GenerationType: generationType, CreatedAt: now, UpdatedAt: now}
	m.apps[app.ID] = app
	return &app, nil
}

func (m *MemoryDatabase) DeployKeyExists(ctx context.Context, deployKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, app := range m.apps {
		if app.DeployKey != nil && *app.DeployKey == deployKey {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryDatabase) ListDeployKeys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for _, app := range m.apps {
		if app.DeployKey != nil {
			keys = append(keys, *app.DeployKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// UpdateDeployment enforces deploy key uniqueness the way the unique index does
func (m *MemoryDatabase) UpdateDeployment(ctx context.Context, appID, deployKey string, deployedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[appID]
	if !ok {
		return fmt.Errorf("application %q: %w", appID, db.ErrNotFound)
	}
	for id, other := range m.apps {
		if id != appID && other.DeployKey != nil && *other.DeployKey == deployKey {
			return fmt.Errorf("%w: deploy key %q already recorded", apperr.ErrStorage, deployKey)
		}
	}
	key := deployKey
	at := deployedAt
	app.DeployKey = &key
	app.DeployedAt = &at
	app.EditedAt = &at
	app.UpdatedAt = at
	m.apps[appID] = app
	return nil
}

func (m *MemoryDatabase) AddTurn(ctx context.Context, turn db.ConversationTurn) (*db.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turn.ID = uuid.New().String()
	turn.CreatedAt = m.tick()
	m.turns = append(m.turns, turn)
	return &turn, nil
}

func (m *MemoryDatabase) ListTurns(ctx context.Context, appID string, before *time.Time, limit int) ([]db.ConversationTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.ConversationTurn
	for i := len(m.turns) - 1; i >= 0 && len(out) < limit; i-- {
		t := m.turns[i]
		if t.ApplicationID != appID {
			continue
		}
		if before != nil && !t.CreatedAt.Before(*before) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
