package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = make(map[string]string)
	}
	m.tokens[email] = token
	return nil
}

func newAuth(t *testing.T) (*AuthService, *captureMailer, *memory.Store) {
	t.Helper()
	repo := memory.New()
	mailer := &captureMailer{}
	return NewAuthService(repo, mailer, "test-secret", time.Hour, time.Minute), mailer, repo
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth, _, _ := newAuth(t)

	u, err := auth.Register(ctx, &RegisterRequest{
		Email:    " Supplier@Example.com ",
		Password: "s3cret-pass",
		FullName: "Acme Foods",
	})
	require.NoError(t, err)
	assert.Equal(t, "supplier@example.com", u.Email)
	assert.Equal(t, models.RoleSupplier, u.Role)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)

	_, err = auth.Register(ctx, &RegisterRequest{Email: "supplier@example.com", Password: "another-pass", FullName: "Dup"})
	assert.ErrorIs(t, err, store.ErrConflict)

	tok, err := auth.Login(ctx, &LoginRequest{Email: "SUPPLIER@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, u.ID, tok.UserID)

	actor, err := auth.Authenticate(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, actor.UserID)
	assert.True(t, actor.IsSupplier())
	assert.False(t, actor.IsManager())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	auth, _, _ := newAuth(t)
	_, err := auth.Register(ctx, &RegisterRequest{Email: "a@example.com", Password: "password-1", FullName: "A"})
	require.NoError(t, err)

	_, err = auth.Login(ctx, &LoginRequest{Email: "a@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = auth.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "password-1"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateRejectsForeignTokens(t *testing.T) {
	ctx := context.Background()
	auth, _, repo := newAuth(t)
	_, err := auth.Register(ctx, &RegisterRequest{Email: "a@example.com", Password: "password-1", FullName: "A"})
	require.NoError(t, err)

	tok, err := auth.Login(ctx, &LoginRequest{Email: "a@example.com", Password: "password-1"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, "different-secret", time.Hour, time.Minute)
	_, err = other.Authenticate(tok.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = auth.Authenticate("not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	auth, mailer, _ := newAuth(t)
	_, err := auth.Register(ctx, &RegisterRequest{Email: "a@example.com", Password: "password-1", FullName: "A"})
	require.NoError(t, err)

	require.NoError(t, auth.ForgotPassword(ctx, "nobody@example.com"))
	assert.Empty(t, mailer.tokens)

	require.NoError(t, auth.ForgotPassword(ctx, "a@example.com"))
	reset := mailer.tokens["a@example.com"]
	require.NotEmpty(t, reset)

	// A reset token is not an access token.
	_, err = auth.Authenticate(reset)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = auth.ResetPassword(ctx, reset, "password-1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, auth.ResetPassword(ctx, reset, "password-2"))

	_, err = auth.Login(ctx, &LoginRequest{Email: "a@example.com", Password: "password-1"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = auth.Login(ctx, &LoginRequest{Email: "a@example.com", Password: "password-2"})
	assert.NoError(t, err)

	err = auth.ResetPassword(ctx, reset, "password-3")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResetTokenInvalidatedByNewerReset(t *testing.T) {
	ctx := context.Background()
	auth, mailer, _ := newAuth(t)
	_, err := auth.Register(ctx, &RegisterRequest{Email: "a@example.com", Password: "password-1", FullName: "A"})
	require.NoError(t, err)

	require.NoError(t, auth.ForgotPassword(ctx, "a@example.com"))
	first := mailer.tokens["a@example.com"]
	require.NoError(t, auth.ForgotPassword(ctx, "a@example.com"))
	second := mailer.tokens["a@example.com"]

	require.NoError(t, auth.ResetPassword(ctx, second, "password-2"))
	assert.ErrorIs(t, auth.ResetPassword(ctx, first, "password-3"), ErrUnauthorized)
}

func TestLogMailerKeepsTokenOutOfInfoLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := &LogMailer{logger: zap.New(core)}

	require.NoError(t, m.SendPasswordReset(context.Background(), "a@example.com", "secret-token"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Password reset requested", entry.Message)
	_, hasToken := entry.ContextMap()["reset_token"]
	assert.False(t, hasToken)
}

func TestResetPasswordRejectsAccessToken(t *testing.T) {
	ctx := context.Background()
	auth, _, _ := newAuth(t)
	_, err := auth.Register(ctx, &RegisterRequest{Email: "a@example.com", Password: "password-1", FullName: "A"})
	require.NoError(t, err)
	tok, err := auth.Login(ctx, &LoginRequest{Email: "a@example.com", Password: "password-1"})
	require.NoError(t, err)

	err = auth.ResetPassword(ctx, tok.AccessToken, "password-2")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSeedManagerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	auth, _, repo := newAuth(t)

	require.NoError(t, auth.SeedManager(ctx, "Boss@Example.com", "manager-pass", "Boss"))
	require.NoError(t, auth.SeedManager(ctx, "boss@example.com", "manager-pass", "Boss"))

	managers, err := repo.ListUsersByRole(ctx, models.RoleManager)
	require.NoError(t, err)
	require.Len(t, managers, 1)

	tok, err := auth.Login(ctx, &LoginRequest{Email: "boss@example.com", Password: "manager-pass"})
	require.NoError(t, err)
	actor, err := auth.Authenticate(tok.AccessToken)
	require.NoError(t, err)
	assert.True(t, actor.IsManager())

	assert.NoError(t, auth.SeedManager(ctx, "", "", ""))
}
