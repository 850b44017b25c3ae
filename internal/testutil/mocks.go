package testutil

import (
	"codegen-app/internal/repository/db"
	"codegen-app/internal/service/llm"
	"context"
	"errors"
	"time"
)

// MockDatabase is a mock implementation of db.Database for testing
type MockDatabase struct {
	// User mocks
	GetUserByUsernameFunc func(ctx context.Context, username string) (*db.User, error)
	CreateUserFunc        func(ctx context.Context, username, email, password, role string) (*db.User, error)

	// Application mocks
	GetApplicationFunc    func(ctx context.Context, id string) (*db.Application, error)
	CreateApplicationFunc func(ctx context.Context, userID, name, generationType string) (*db.Application, error)
	DeployKeyExistsFunc   func(ctx context.Context, deployKey string) (bool, error)
	ListDeployKeysFunc    func(ctx context.Context) ([]string, error)
	UpdateDeploymentFunc  func(ctx context.Context, appID, deployKey string, deployedAt time.Time) error

	// Turn mocks
	AddTurnFunc   func(ctx context.Context, turn db.ConversationTurn) (*db.ConversationTurn, error)
	ListTurnsFunc func(ctx context.Context, appID string, before *time.Time, limit int) ([]db.ConversationTurn, error)
}

var _ db.Database = (*MockDatabase)(nil)

// User methods
func (m *MockDatabase) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	if m.GetUserByUsernameFunc != nil {
		return m.GetUserByUsernameFunc(ctx, username)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) CreateUser(ctx context.Context, username, email, password, role string) (*db.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, username, email, password, role)
	}
	return nil, errors.New("not implemented")
}

// Application methods
func (m *MockDatabase) GetApplication(ctx context.Context, id string) (*db.Application, error) {
	if m.GetApplicationFunc != nil {
		return m.GetApplicationFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) CreateApplication(ctx context.Context, userID, name, generationType string) (*db.Application, error) {
	if m.CreateApplicationFunc != nil {
		return m.CreateApplicationFunc(ctx, userID, name, generationType)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) DeployKeyExists(ctx context.Context, deployKey string) (bool, error) {
	if m.DeployKeyExistsFunc != nil {
		return m.DeployKeyExistsFunc(ctx, deployKey)
	}
	return false, errors.New("not implemented")
}

func (m *MockDatabase) ListDeployKeys(ctx context.Context) ([]string, error) {
	if m.ListDeployKeysFunc != nil {
		return m.ListDeployKeysFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) UpdateDeployment(ctx context.Context, appID, deployKey string, deployedAt time.Time) error {
	if m.UpdateDeploymentFunc != nil {
		return m.UpdateDeploymentFunc(ctx, appID, deployKey, deployedAt)
	}
	return errors.New("not implemented")
}

// Turn methods
func (m *MockDatabase) AddTurn(ctx context.Context, turn db.ConversationTurn) (*db.ConversationTurn, error) {
	if m.AddTurnFunc != nil {
		return m.AddTurnFunc(ctx, turn)
	}
	return nil, errors.New("not implemented")
}

func (m *MockDatabase) ListTurns(ctx context.Context, appID string, before *time.Time, limit int) ([]db.ConversationTurn, error) {
	if m.ListTurnsFunc != nil {
		return m.ListTurnsFunc(ctx, appID, before, limit)
	}
	return nil, errors.New("not implemented")
}

// MockBackend is a mock implementation of llm.Backend for testing
type MockBackend struct {
	StreamFunc func(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error)
}

var _ llm.Backend = (*MockBackend)(nil)

func (m *MockBackend) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

// FragmentStream returns a closed-when-done channel yielding the given fragments,
// followed by a final error chunk when err is non-nil.
func FragmentStream(err error, fragments ...string) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(fragments)+1)
	for _, f := range fragments {
		ch <- llm.StreamChunk{Content: f}
	}
	if err != nil {
		ch <- llm.StreamChunk{Err: err}
	}
	close(ch)
	return ch
}
