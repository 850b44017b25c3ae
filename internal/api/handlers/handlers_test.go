package handlers

import (
	"codegen-app/internal/app"
	"codegen-app/internal/config"
	"codegen-app/internal/repository/db"
	"codegen-app/internal/service/llm"
	"codegen-app/internal/testutil"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type server struct {
	cfg     *app.Config
	mem     *testutil.MemoryDatabase
	backend *testutil.MockBackend
	router  http.Handler
}

func testAppConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		Auth: config.AuthConfig{
			JWTSecret:       []byte("0123456789abcdef0123456789abcdef"),
			TokenExpiration: time.Hour,
		},
		Storage: config.StorageConfig{
			OutputRoot: t.TempDir(),
			DeployRoot: t.TempDir(),
			PublicHost: "https://host",
		},
		Chat: config.ChatConfig{WindowSize: 10, MaxPageSize: 50},
	}
}

func newServer(t *testing.T, database db.Database, fragments ...string) *server {
	t.Helper()
	s := &server{mem: testutil.NewMemoryDatabase()}
	if database == nil {
		database = s.mem
	}
	s.backend = &testutil.MockBackend{
		StreamFunc: func(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
			return testutil.FragmentStream(nil, fragments...), nil
		},
	}
	s.cfg = app.NewConfig(database, testAppConfig(t), s.backend)
	s.router = NewHandlers(s.cfg).NewRouter(nil)
	return s
}

func (s *server) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.cfg.Tokens.GenerateToken(&db.User{ID: userID, Username: userID, Role: db.RoleUser})
	require.NoError(t, err)
	return token
}

func (s *server) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndPreflight(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = s.do(t, http.MethodOptions, "/api/apps/A1/deploy", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginHandler(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("demo123"), bcrypt.MinCost)
	require.NoError(t, err)

	database := &testutil.MockDatabase{
		GetUserByUsernameFunc: func(ctx context.Context, username string) (*db.User, error) {
			if username != "demo" {
				return nil, fmt.Errorf("user %q: %w", username, db.ErrNotFound)
			}
			return &db.User{ID: "user-1", Username: "demo", PasswordHash: string(hash), Role: db.RoleUser}, nil
		},
	}
	s := newServer(t, database)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "valid credentials", body: `{"username":"demo","password":"demo123"}`, wantStatus: http.StatusOK},
		{name: "wrong password", body: `{"username":"demo","password":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "unknown user", body: `{"username":"ghost","password":"demo123"}`, wantStatus: http.StatusUnauthorized},
		{name: "missing password", body: `{"username":"demo"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/login", "", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp LoginResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			claims, err := s.cfg.Tokens.ValidateToken(resp.Token)
			require.NoError(t, err)
			assert.Equal(t, "user-1", claims.UserID)
		})
	}
}

func TestRegisterHandler(t *testing.T) {
	s := newServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/register", "", `{"username":"newbie","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/register", "", `{"username":"x","password":"secret1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t, nil)

	for _, target := range []string{"/api/apps", "/api/apps/A1/deploy"} {
		rec := s.do(t, http.MethodPost, target, "", "{}")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	rec := s.do(t, http.MethodGet, "/api/apps/A1/chat/gen?message=hi", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAppHandler(t *testing.T) {
	s := newServer(t, nil)
	token := s.token(t, "user-1")

	rec := s.do(t, http.MethodPost, "/api/apps", token, `{"name":"Landing","generation_type":"singlefile"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AppResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "singlefile", resp.GenerationType)

	created, err := s.mem.GetApplication(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", created.UserID)

	rec = s.do(t, http.MethodPost, "/api/apps", token, `{"name":"Landing","generation_type":"flutter"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateDeployAndServe(t *testing.T) {
	s := newServer(t, nil, "<h", "tml>", "...", "</html>")
	s.mem.PutApplication(db.Application{ID: "A1", UserID: "user-1", GenerationType: "singlefile"})
	token := s.token(t, "user-1")

	rec := s.do(t, http.MethodGet, "/api/apps/A1/chat/gen?message=hello+page", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		`data: {"d":"<h"}`+"\n\n"+
			`data: {"d":"tml>"}`+"\n\n"+
			`data: {"d":"..."}`+"\n\n"+
			`data: {"d":"</html>"}`+"\n\n"+
			"event: done\ndata: \n\n",
		rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/apps/A1/deploy", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var deployed DeployResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&deployed))
	require.True(t, strings.HasPrefix(deployed.URL, "https://host/"), deployed.URL)
	key := strings.TrimPrefix(deployed.URL, "https://host/")
	assert.Len(t, key, 6)

	rec = s.do(t, http.MethodGet, "/sites/"+key+"/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>...</html>", rec.Body.String())

	rec = s.do(t, http.MethodGet, "/sites/"+key, "", "")
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/sites/"+key+"/", rec.Header().Get("Location"))
}

func TestGenerateHandler_Errors(t *testing.T) {
	s := newServer(t, nil)
	s.mem.PutApplication(db.Application{ID: "A1", UserID: "user-1", GenerationType: "singlefile"})

	rec := s.do(t, http.MethodGet, "/api/apps/A1/chat/gen?message=hi", s.token(t, "user-2"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = s.do(t, http.MethodGet, "/api/apps/A1/chat/gen", s.token(t, "user-1"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/apps/missing/chat/gen?message=hi", s.token(t, "user-1"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.backend.StreamFunc = func(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
		return nil, errors.New("upstream unavailable")
	}
	rec = s.do(t, http.MethodGet, "/api/apps/A1/chat/gen?message=hi", s.token(t, "user-1"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "event: error\ndata: {\"error\":\"upstream unavailable\"}\n\n", rec.Body.String())
}

func TestHistoryHandler(t *testing.T) {
	s := newServer(t, nil)
	s.mem.PutApplication(db.Application{ID: "A1", UserID: "user-1", GenerationType: "singlefile"})
	for i := 0; i < 3; i++ {
		_, err := s.cfg.Memory.Append(context.Background(), "A1", "user-1", db.TurnRoleUser, fmt.Sprintf("prompt %d", i))
		require.NoError(t, err)
	}
	token := s.token(t, "user-1")

	rec := s.do(t, http.MethodGet, "/api/apps/A1/history?pageSize=2", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var first HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))
	require.Len(t, first.Turns, 2)
	assert.Equal(t, "prompt 2", first.Turns[0].Content)
	assert.True(t, first.HasMore)
	require.NotNil(t, first.NextCursor)

	rec = s.do(t, http.MethodGet, "/api/apps/A1/history?pageSize=2&lastCreateTime="+url.QueryEscape(first.NextCursor.Format(time.RFC3339Nano)), token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var second HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&second))
	require.Len(t, second.Turns, 1)
	assert.Equal(t, "prompt 0", second.Turns[0].Content)
	assert.False(t, second.HasMore)

	rec = s.do(t, http.MethodGet, "/api/apps/A1/history?pageSize=abc", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/apps/A1/history", s.token(t, "user-2"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSiteHandler_RejectsInvalidKeys(t *testing.T) {
	s := newServer(t, nil)

	for _, target := range []string{"/sites/short/", "/sites/.retired-abc/", "/sites/ABCDEF/"} {
		rec := s.do(t, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}
