package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository/sqlstore"
)

// =========================================================================
// SIGNUP
// =========================================================================

func TestSignup_HashesPassword(t *testing.T) {
	env := newTestEnv(t)

	u := env.signup(t, "testuser")

	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, testPassword, u.Password)
	assert.Regexp(t, `^\$2[aby]\$`, u.Password)
	assert.Equal(t, model.DefaultImageURL, u.ImageURL)
	assert.Equal(t, model.DefaultHeaderImageURL, u.HeaderImageURL)
}

func TestSignup_KeepsCustomImage(t *testing.T) {
	env := newTestEnv(t)

	u, err := env.auth.Signup(context.Background(), SignupInput{
		Email: "pic@test.com", Username: "pic", Password: testPassword, ImageURL: "https://img.test/me.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/me.png", u.ImageURL)
}

// Missing email or username is rejected by the store as an integrity
// violation, nothing is written, and the next signup still works.
func TestSignup_MissingFieldsIsIntegrityError(t *testing.T) {
	tests := []struct {
		name string
		in   SignupInput
	}{
		{"no email", SignupInput{Username: "testtest", Password: testPassword}},
		{"no username", SignupInput{Email: "email@email.com", Password: testPassword}},
		{"neither", SignupInput{Password: testPassword}},
		{"blank username", SignupInput{Email: "e@e.com", Username: "   ", Password: testPassword}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			_, err := env.auth.Signup(ctx, tt.in)
			require.ErrorIs(t, err, apperror.ErrIntegrity)

			all, err := env.users.Search(ctx, "", 0, 0)
			require.NoError(t, err)
			assert.Empty(t, all)

			env.signup(t, "afterwards")
		})
	}
}

func TestSignup_DuplicateUsernameAndEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "taken")

	_, err := env.auth.Signup(ctx, SignupInput{Email: "other@test.com", Username: "taken", Password: testPassword})
	require.ErrorIs(t, err, apperror.ErrIntegrity)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "username", appErr.Field)

	_, err = env.auth.Signup(ctx, SignupInput{Email: "taken@test.com", Username: "fresh", Password: testPassword})
	require.ErrorIs(t, err, apperror.ErrIntegrity)
}

func TestSignup_ConcurrentSameUsername(t *testing.T) {
	env := newTestEnv(t)

	const racers = 2
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.auth.Signup(context.Background(), SignupInput{
				Email:    fmt.Sprintf("racer%d@test.com", i),
				Username: "racer",
				Password: testPassword,
			})
		}()
	}
	wg.Wait()

	var ok, integrity int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperror.ErrIntegrity):
			integrity++
		default:
			t.Errorf("Signup() unexpected error = %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one signup wins")
	assert.Equal(t, 1, integrity, "the loser gets an integrity error")

	users, err := env.users.Search(context.Background(), "racer", 0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestSignup_EmptyPasswordIsValidationError(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.Signup(context.Background(), SignupInput{Email: "a@a.com", Username: "a"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

// =========================================================================
// AUTHENTICATE / LOGIN
// =========================================================================

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := env.signup(t, "testuser")

	u, ok, err := env.auth.Authenticate(ctx, "testuser", testPassword)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, u.ID)

	u, ok, err = env.auth.Authenticate(ctx, "testuser", "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, u)

	u, ok, err = env.auth.Authenticate(ctx, "nobody", testPassword)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, u)
}

// failingLookupStore breaks username lookups to simulate a database fault.
type failingLookupStore struct {
	*sqlstore.DB
}

func (failingLookupStore) GetUserByUsername(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection reset")
}

func TestAuthenticate_StoreFailureIsAnError(t *testing.T) {
	db, err := sqlstore.New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	env := newTestEnvWithStore(t, db, failingLookupStore{db})

	_, ok, err := env.auth.Authenticate(context.Background(), "anyone", testPassword)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)
}

func TestLogin_IssuesToken(t *testing.T) {
	env := newTestEnv(t)
	created := env.signup(t, "testuser")

	res, err := env.auth.Login(context.Background(), "testuser", testPassword)
	require.NoError(t, err)
	assert.Equal(t, created.ID, res.User.ID)

	userID, err := env.auth.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, userID)
}

func TestLogin_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "testuser")

	for _, pw := range []string{"nope", ""} {
		_, err := env.auth.Login(context.Background(), "testuser", pw)
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	}
	_, err := env.auth.Login(context.Background(), "ghost", testPassword)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestValidateToken_Invalid(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.ValidateToken("garbage")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
