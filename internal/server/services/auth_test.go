package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/cryptox"
	"github.com/dmitrijs2005/gophsocial/internal/server/auth"
	"github.com/dmitrijs2005/gophsocial/internal/server/config"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T) (*AuthService, *fakeStore) {
	t.Helper()
	db, _ := newSQLMockDB(t)
	store := newFakeStore()
	cfg := &config.Config{
		SecretKey:                   "k",
		AccessTokenValidityDuration: time.Hour,
		BcryptCost:                  4, // bcrypt.MinCost keeps tests fast
		TOTPIssuer:                  "gophsocial",
	}
	return NewAuthService(db, &fakeRepoManager{s: store}, cfg), store
}

func TestSignup_Success(t *testing.T) {
	s, store := newAuthService(t)

	sess, err := s.Signup(context.Background(), " alice ", "Alice@Example.com", "secret1")
	require.NoError(t, err)

	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "alice", sess.User.Username)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.False(t, sess.User.TwoFactorEnabled)

	stored := store.users[sess.User.ID]
	require.NotNil(t, stored)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, cryptox.ComparePassword(stored.PasswordHash, "secret1"))

	uid, err := auth.GetUserIDFromToken(sess.Token, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, uid)
}

func TestSignup_Validation(t *testing.T) {
	s, store := newAuthService(t)

	tests := []struct {
		name, username, email, password string
	}{
		{name: "missing username", email: "a@b.c", password: "secret1"},
		{name: "missing email", username: "a", password: "secret1"},
		{name: "missing password", username: "a", email: "a@b.c"},
		{name: "bad email", username: "a", email: "not-an-email", password: "secret1"},
		{name: "short password", username: "a", email: "a@b.c", password: "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Signup(context.Background(), tt.username, tt.email, tt.password)
			assert.ErrorIs(t, err, common.ErrorValidation)
		})
	}
	assert.Empty(t, store.users)
}

func TestSignup_DuplicateIsConflict(t *testing.T) {
	s, store := newAuthService(t)
	ctx := context.Background()

	_, err := s.Signup(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	_, err = s.Signup(ctx, "alice", "other@example.com", "secret1")
	assert.ErrorIs(t, err, common.ErrorConflict)

	_, err = s.Signup(ctx, "other", "ALICE@example.com", "secret1")
	assert.ErrorIs(t, err, common.ErrorConflict)

	assert.Len(t, store.users, 1)
}

func TestSignup_RepoError(t *testing.T) {
	s, store := newAuthService(t)
	store.err = errors.New("db down")

	_, err := s.Signup(context.Background(), "alice", "alice@example.com", "secret1")
	assert.ErrorContains(t, err, "db down")
	assert.NotErrorIs(t, err, common.ErrorConflict)
}

func TestLogin_PasswordOnly(t *testing.T) {
	s, _ := newAuthService(t)
	ctx := context.Background()

	_, err := s.Signup(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	res, err := s.CheckCredentials(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, CredentialPasswordOnly, res.Kind)

	sess, err := s.Login(ctx, "ALICE@example.com", "secret1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s, _ := newAuthService(t)
	ctx := context.Background()

	_, err := s.Signup(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	sess, err := s.Login(ctx, "alice@example.com", "wrong-pass", "")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Nil(t, sess)

	sess, err = s.Login(ctx, "ghost@example.com", "secret1", "")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Nil(t, sess)
}

func TestLogin_TwoFactor(t *testing.T) {
	s, store := newAuthService(t)
	ctx := context.Background()

	signed, err := s.Signup(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	uri, err := s.EnableTwoFactor(ctx, signed.User.ID)
	require.NoError(t, err)
	assert.Contains(t, uri, "otpauth://totp/")

	secret := store.users[signed.User.ID].TwoFactorSecret
	require.NotEmpty(t, secret)

	res, err := s.CheckCredentials(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, CredentialNeedsTOTP, res.Kind)

	t.Run("missing code", func(t *testing.T) {
		sess, err := s.Login(ctx, "alice@example.com", "secret1", "")
		assert.ErrorIs(t, err, common.ErrInvalidTOTP)
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
		assert.Nil(t, sess)
	})

	t.Run("wrong code", func(t *testing.T) {
		sess, err := s.Login(ctx, "alice@example.com", "secret1", "000000x")
		assert.ErrorIs(t, err, common.ErrInvalidTOTP)
		assert.Nil(t, sess)
	})

	t.Run("valid code", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)

		sess, err := s.Login(ctx, "alice@example.com", "secret1", code)
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token)
	})

	t.Run("password still checked first", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)

		_, err = s.Login(ctx, "alice@example.com", "nope", code)
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	})
}

func TestEnableTwoFactor_UserMissing(t *testing.T) {
	s, _ := newAuthService(t)

	_, err := s.EnableTwoFactor(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAuthenticate(t *testing.T) {
	s, store := newAuthService(t)
	ctx := context.Background()

	sess, err := s.Signup(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	u, err := s.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, u.ID)

	_, err = s.Authenticate(ctx, "")
	assert.ErrorIs(t, err, common.ErrTokenMissing)

	_, err = s.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	expired, err := auth.GenerateToken(sess.User.ID, []byte("k"), -time.Minute)
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, expired)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	delete(store.users, sess.User.ID)
	_, err = s.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
