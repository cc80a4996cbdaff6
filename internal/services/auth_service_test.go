package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/taskchat/internal/database"
	"github.com/thereayou/taskchat/internal/models"
	"github.com/thereayou/taskchat/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]models.User
	lastSeen map[uuid.UUID]int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[uuid.UUID]models.User{}, lastSeen: map[uuid.UUID]int{}}
}

func (f *fakeUsers) SaveUser(u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = uuid.New()
	f.byID[u.ID] = *u
	return nil
}

func (f *fakeUsers) GetUser(id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &u, nil
}

func (f *fakeUsers) FindUserByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeUsers) ListUsers(uuid.UUID) ([]models.User, error) { return nil, nil }

func (f *fakeUsers) UpdateLastSeen(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSeen[id]++
	return nil
}

type recordingBlacklist struct {
	token string
	ttl   time.Duration
}

func (b *recordingBlacklist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	b.token, b.ttl = token, ttl
	return nil
}

func (b *recordingBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	return b.token == token, nil
}

func newService(t *testing.T) (*AuthService, *fakeUsers, *recordingBlacklist) {
	t.Helper()
	users := newFakeUsers()
	bl := &recordingBlacklist{}
	svc := NewAuthService(users, auth.NewJWTManager("secret", time.Hour), bl, WithHashCost(bcrypt.MinCost))
	return svc, users, bl
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, users, _ := newService(t)

	res, err := svc.Register(context.Background(), " Ann ", " ANN@example.com", "password1")

	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	stored, err := users.GetUser(res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", stored.Name)
	assert.Equal(t, "ann@example.com", stored.Email)
	assert.NotEqual(t, "password1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password1")))

	_, err = svc.Register(context.Background(), "Ann", "ann@example.com", "password2")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc, users, _ := newService(t)
	reg, err := svc.Register(context.Background(), "Ann", "ann@example.com", "password1")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "ann@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "bob@example.com", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := svc.Login(context.Background(), "Ann@Example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)
	assert.Equal(t, 1, users.lastSeen[reg.User.ID])
}

func TestLogoutRevokesUntilExpiry(t *testing.T) {
	svc, _, bl := newService(t)
	res, err := svc.Register(context.Background(), "Ann", "ann@example.com", "password1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), res.Token))

	assert.Equal(t, res.Token, bl.token)
	assert.InDelta(t, time.Hour.Seconds(), bl.ttl.Seconds(), 5)
	assert.Error(t, svc.Logout(context.Background(), "garbage"))
}
