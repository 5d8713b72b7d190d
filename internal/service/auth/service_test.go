package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/ragebot/backend/internal/config"
	"github.com/zhouzirui/ragebot/backend/internal/model/user"
	"github.com/zhouzirui/ragebot/backend/internal/repository"
)

var testAuth = config.AuthConfig{Secret: "test-secret", TokenTTL: time.Hour}

func newTestService(t *testing.T, opts ...Option) (*Service, user.Store) {
	t.Helper()
	store, err := repository.NewFileStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	opts = append([]Option{WithHashCost(bcrypt.MinCost)}, opts...)
	return NewService(store, testAuth, nil, opts...), store
}

func TestSignupStoresHashedUser(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	created, err := svc.Signup(ctx, "  Ada@Example.com ", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)

	stored, err := store.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")))

	_, err = svc.Signup(ctx, "ada@example.com", "another1")
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestSignupValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string][2]string{
		"empty email":    {"", "hunter22"},
		"no at":          {"ada.example.com", "hunter22"},
		"no domain dot":  {"ada@localhost", "hunter22"},
		"display name":   {"Ada <ada@example.com>", "hunter22"},
		"short password": {"ada@example.com", "12345"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tc[0], tc[1])
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Signup(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)

	token, err := svc.Login(ctx, "ADA@example.com", "hunter22")
	require.NoError(t, err)

	identity, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, identity.UserID)
	assert.Equal(t, "ada@example.com", identity.Email)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ada@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	svc, _ := newTestService(t, WithClock(func() time.Time { return issuedAt }))
	ctx := context.Background()

	_, err := svc.Signup(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	svc, _ := newTestService(t)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := other.SignedString([]byte("someone-else"))
	require.NoError(t, err)
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Verify(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err = noSubject.SignedString([]byte(testAuth.Secret))
	require.NoError(t, err)
	_, err = svc.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
