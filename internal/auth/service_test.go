package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abduss/cryptovault/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenSecret:  "access-secret",
		RefreshTokenSecret: "refresh-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		BcryptCost:         4,
	}
}

func TestRegisterSuccess(t *testing.T) {
	store := newMemoryStore()
	provisioner := &recordingProvisioner{}

	service := NewService(store, provisioner, testConfig())
	result, err := service.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "User@Example.com",
		Password: "StrongPass1!",
	})

	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	if result.User.PasswordHash != "" {
		t.Fatalf("expected password hash to be stripped from response")
	}

	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued")
	}

	if len(store.users) != 1 {
		t.Fatalf("expected user stored; got %d", len(store.users))
	}

	if len(provisioner.tenants) != 1 || provisioner.tenants[0] != "alice" {
		t.Fatalf("expected tenant folder provisioned for alice, got %v", provisioner.tenants)
	}
}

func TestRegisterSurvivesProvisioningFailure(t *testing.T) {
	service := NewService(newMemoryStore(), &recordingProvisioner{err: errors.New("disk full")}, testConfig())
	if _, err := service.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "StrongPass1!",
	}); err != nil {
		t.Fatalf("register returned error: %v", err)
	}
}

func TestRegisterRejectsBadUsername(t *testing.T) {
	service := NewService(newMemoryStore(), nil, testConfig())

	for _, name := range []string{"", "ab", "../root", "has space", "x/y"} {
		_, err := service.Register(context.Background(), RegisterInput{
			Username: name,
			Email:    "user@example.com",
			Password: "StrongPass1!",
		})
		if err != ErrInvalidUsername {
			t.Fatalf("username %q: expected ErrInvalidUsername, got %v", name, err)
		}
	}
}

func TestRegisterDuplicates(t *testing.T) {
	service := NewService(newMemoryStore(), nil, testConfig())
	_, err := service.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("initial registration returned error: %v", err)
	}

	_, err = service.Register(context.Background(), RegisterInput{
		Username: "alice2",
		Email:    "user@example.com",
		Password: "AnotherPass2!",
	})
	if err != ErrEmailAlreadyExists {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}

	_, err = service.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: "AnotherPass2!",
	})
	if err != ErrUsernameTaken {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestLoginByUsernameOrEmail(t *testing.T) {
	service := NewService(newMemoryStore(), nil, testConfig())
	_, err := service.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	for _, login := range []string{"alice", "user@example.com"} {
		result, err := service.Login(context.Background(), LoginInput{
			Login:    login,
			Password: "StrongPass1!",
		})
		if err != nil {
			t.Fatalf("login %q returned error: %v", login, err)
		}
		if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
			t.Fatalf("expected tokens for %q", login)
		}
	}
}

func TestLoginInvalidPassword(t *testing.T) {
	service := NewService(newMemoryStore(), nil, testConfig())
	_, err := service.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	_, err = service.Login(context.Background(), LoginInput{
		Login:    "alice",
		Password: "WrongPass",
	})

	if err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginInactiveUser(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, nil, testConfig())
	result, err := service.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	user := store.users[result.User.Email]
	user.IsActive = false
	store.users[result.User.Email] = user

	if _, err := service.Login(context.Background(), LoginInput{Login: "alice", Password: "StrongPass1!"}); err != ErrUserInactive {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestAccessTokenCarriesTenant(t *testing.T) {
	service := NewService(newMemoryStore(), nil, testConfig())
	result, err := service.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	claims, err := service.ValidateAccessToken(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("validate returned error: %v", err)
	}
	if claims.Username != "alice" || claims.UserID != result.User.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := service.ValidateAccessToken(result.Tokens.AccessToken + "x"); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for tampered token, got %v", err)
	}
}

func TestMiddlewareInjectsPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := NewService(newMemoryStore(), nil, testConfig())
	result, err := service.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "user@example.com",
		Password: "StrongPass1!",
	})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	router := gin.New()
	router.GET("/me", AuthMiddleware(service), func(c *gin.Context) {
		id, user, ok := RequireUser(c)
		if !ok {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id.String(), "username": user.Username})
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	store := newMemoryStore()
	service := NewService(store, nil, testConfig())
	ctx := context.Background()

	result, err := service.Register(ctx, RegisterInput{Username: "alice", Email: "user@example.com", Password: "StrongPass1!"})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	if len(store.refreshTokens) != 1 {
		t.Fatalf("expected one stored refresh token, got %d", len(store.refreshTokens))
	}

	if err := service.Logout(ctx, result.User.ID, result.Tokens.RefreshToken); err != nil {
		t.Fatalf("logout returned error: %v", err)
	}
	if len(store.refreshTokens) != 0 {
		t.Fatalf("expected refresh token to be revoked")
	}
	if err := service.Logout(ctx, result.User.ID, result.Tokens.RefreshToken); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized on second logout, got %v", err)
	}
	if err := service.Logout(ctx, result.User.ID, " "); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for empty token, got %v", err)
	}
}

func TestProfileHidesPasswordHash(t *testing.T) {
	service := NewService(newMemoryStore(), nil, testConfig())
	ctx := context.Background()

	result, err := service.Register(ctx, RegisterInput{Username: "alice", Email: "user@example.com", Password: "StrongPass1!"})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	user, err := service.Profile(ctx, result.User.ID)
	if err != nil {
		t.Fatalf("profile returned error: %v", err)
	}
	if user.Username != "alice" || user.PasswordHash != "" {
		t.Fatalf("unexpected profile %+v", user)
	}
	if _, err := service.Profile(ctx, uuid.New()); err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestProtectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := NewService(newMemoryStore(), nil, testConfig())
	result, err := service.Register(context.Background(), RegisterInput{Username: "alice", Email: "user@example.com", Password: "StrongPass1!"})
	if err != nil {
		t.Fatalf("register returned error: %v", err)
	}

	router := gin.New()
	protected := router.Group("/v1", AuthMiddleware(service))
	RegisterProtectedRoutes(protected, service)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodGet, "/v1/auth/me", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"username":"alice"`) {
		t.Fatalf("expected profile, got %d %s", rec.Code, rec.Body.String())
	}

	logout := `{"refresh_token":"` + result.Tokens.RefreshToken + `"}`
	if rec := send(http.MethodPost, "/v1/auth/logout", logout); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on logout, got %d", rec.Code)
	}
	if rec := send(http.MethodPost, "/v1/auth/logout", logout); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on repeated logout, got %d", rec.Code)
	}
}

// memoryStore implements userStore for tests.
type memoryStore struct {
	users         map[string]User
	refreshTokens map[string]time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:         make(map[string]User),
		refreshTokens: make(map[string]time.Time),
	}
}

func (m *memoryStore) CreateUser(ctx context.Context, username, email, passwordHash string, displayName *string) (User, error) {
	if _, ok := m.users[email]; ok {
		return User{}, ErrEmailAlreadyExists
	}
	for _, u := range m.users {
		if u.Username == username {
			return User{}, ErrUsernameTaken
		}
	}
	user := User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		DisplayName:  displayName,
		IsActive:     true,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[email] = user
	return user, nil
}

func (m *memoryStore) FindUserByLogin(ctx context.Context, login string) (User, error) {
	for _, u := range m.users {
		if u.Username == login || u.Email == login {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memoryStore) FindUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *memoryStore) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	m.refreshTokens[tokenHash] = expiresAt
	return nil
}

func (m *memoryStore) RevokeToken(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	if _, ok := m.refreshTokens[tokenHash]; !ok {
		return ErrUnauthorized
	}
	delete(m.refreshTokens, tokenHash)
	return nil
}

type recordingProvisioner struct {
	tenants []string
	err     error
}

func (p *recordingProvisioner) EnsureTenant(ctx context.Context, tenant string) error {
	p.tenants = append(p.tenants, tenant)
	return p.err
}
