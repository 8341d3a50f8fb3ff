package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
	"github.com/sakif/warbler/internal/repository/sqlstore"
)

const testPassword = "password"

// testEnv wires every service over one in-memory SQLite store.
type testEnv struct {
	store    *sqlstore.DB
	tokens   *auth.TokenService
	auth     *AuthService
	users    *UserService
	follows  *FollowService
	messages *MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlstore.New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newTestEnvWithStore(t, db, db)
}

// newTestEnvWithStore lets a test swap in a store that fails on purpose.
func newTestEnvWithStore(t *testing.T, db *sqlstore.DB, store repository.Store) *testEnv {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)

	passwords := auth.NewPasswordService(bcrypt.MinCost)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		store:    db,
		tokens:   tokens,
		auth:     NewAuthService(store, passwords, tokens, logger),
		users:    NewUserService(store, passwords, logger),
		follows:  NewFollowService(store, logger),
		messages: NewMessageService(store, logger),
	}
}

// signup creates username with testPassword and fails the test on error.
func (e *testEnv) signup(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := e.auth.Signup(context.Background(), SignupInput{
		Email:    username + "@test.com",
		Username: username,
		Password: testPassword,
	})
	require.NoError(t, err)
	return u
}

func usernames(users []model.User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Username
	}
	return out
}

func texts(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}
