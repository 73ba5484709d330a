package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdesk/internal/model"
	"ragdesk/internal/pkg/jwtutil"
)

// mockUserStore implements UserStore for testing.
type mockUserStore struct {
	users  map[string]*model.User
	nextID uint
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]*model.User), nextID: 1}
}

func (m *mockUserStore) Create(user *model.User) error {
	user.ID = m.nextID
	m.nextID++
	m.users[user.Email] = user
	return nil
}

func (m *mockUserStore) GetByEmail(email string) (*model.User, error) {
	return m.users[email], nil
}

func (m *mockUserStore) GetByID(id uint) (*model.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	users := newMockUserStore()
	s := NewAuthService(users, "test-secret", time.Hour)

	reg, err := s.Register(RegisterInput{
		Email:    "Alex@Example.com",
		Password: "correct horse battery",
		Role:     "pdf-only",
	})
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", reg.User.Email)
	assert.Equal(t, model.RolePDFOnly, reg.User.Role)
	assert.NotEmpty(t, reg.Token)
	assert.NotEqual(t, "correct horse battery", reg.User.PasswordHash)

	claims, err := jwtutil.ParseToken("test-secret", reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)
	assert.Equal(t, "alex@example.com", claims.Email)
	assert.Equal(t, "pdf-only", claims.Role)

	login, err := s.Login(LoginInput{Email: "alex@example.com", Password: "correct horse battery"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
}

func TestAuthService_Register_UnknownRole(t *testing.T) {
	s := NewAuthService(newMockUserStore(), "test-secret", time.Hour)

	_, err := s.Register(RegisterInput{
		Email:    "alex@example.com",
		Password: "correct horse battery",
		Role:     "administrator",
	})
	assert.ErrorIs(t, err, model.ErrUnknownRole)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	users := newMockUserStore()
	s := NewAuthService(users, "test-secret", time.Hour)

	_, err := s.Register(RegisterInput{Email: "a@example.com", Password: "longenough", Role: "web-only"})
	require.NoError(t, err)

	_, err = s.Register(RegisterInput{Email: "A@Example.com", Password: "longenough", Role: "web-only"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthService_Register_WeakInput(t *testing.T) {
	s := NewAuthService(newMockUserStore(), "test-secret", time.Hour)

	_, err := s.Register(RegisterInput{Email: "a@example.com", Password: "short", Role: "web-only"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = s.Register(RegisterInput{Email: "", Password: "longenough", Role: "web-only"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	users := newMockUserStore()
	s := NewAuthService(users, "test-secret", time.Hour)

	_, err := s.Register(RegisterInput{Email: "a@example.com", Password: "longenough", Role: "full-access"})
	require.NoError(t, err)

	_, err = s.Login(LoginInput{Email: "a@example.com", Password: "wrongpassword"})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = s.Login(LoginInput{Email: "nobody@example.com", Password: "longenough"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
