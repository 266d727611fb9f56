package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil {
		user.ID = 1
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u, ok := args.Get(0).(*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, ok := args.Get(0).(*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	args := m.Called(ctx, opts)
	if r, ok := args.Get(0).(*repository.ListResult[domain.User]); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

func newMockUserService() (*UserService, *MockUserRepository) {
	repo := new(MockUserRepository)
	svc := NewUserService(repo, UserServiceConfig{MinPasswordLength: 5, BcryptCost: bcrypt.MinCost}, zerolog.Nop())
	return svc, repo
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

// =============================================================================
// Tests
// =============================================================================

func TestUserService_CreateAccount_NormalizesEmail(t *testing.T) {
	samples := []struct {
		input    string
		expected string
	}{
		{"test1@EXAMPLE.com", "test1@example.com"},
		{"Test2@Example.com", "Test2@example.com"},
		{"TEST3@EXAMPLE.COM", "TEST3@example.com"},
		{"test4@example.COM", "test4@example.com"},
	}

	for _, tt := range samples {
		t.Run(tt.input, func(t *testing.T) {
			svc, repo := newMockUserService()
			repo.On("ExistsByEmail", mock.Anything, tt.expected).Return(false, nil)
			repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

			out, err := svc.CreateAccount(context.Background(), CreateAccountInput{Email: tt.input, Password: "sample123"})
			require.NoError(t, err)

			if out.User.Email != tt.expected {
				t.Errorf("expected email %s, got %s", tt.expected, out.User.Email)
			}
			if out.User.IsStaff || out.User.IsSuperuser {
				t.Error("regular account must not be privileged")
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestUserService_CreateAccount_StoresHashOnly(t *testing.T) {
	svc, repo := newMockUserService()
	repo.On("ExistsByEmail", mock.Anything, "cook@example.com").Return(false, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.PasswordHash != "" && u.PasswordHash != "testpass123"
	})).Return(nil)

	out, err := svc.CreateAccount(context.Background(), CreateAccountInput{
		Email:    "cook@example.com",
		Password: "testpass123",
		Name:     "Cook",
	})
	require.NoError(t, err)

	assert.True(t, svc.VerifyPassword(out.User, "testpass123"))
	assert.False(t, svc.VerifyPassword(out.User, "wrong"))
	assert.False(t, svc.VerifyPassword(nil, "testpass123"))
	repo.AssertExpectations(t)
}

func TestUserService_CreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name      string
		input     CreateAccountInput
		wantField string
	}{
		{name: "empty email", input: CreateAccountInput{Email: "", Password: "test123"}, wantField: "email"},
		{name: "whitespace email", input: CreateAccountInput{Email: "   ", Password: "test123"}, wantField: "email"},
		{name: "malformed email", input: CreateAccountInput{Email: "not-an-email", Password: "test123"}, wantField: "email"},
		{name: "display name", input: CreateAccountInput{Email: "Bob <bob@example.com>", Password: "test123"}, wantField: "email"},
		{name: "short password", input: CreateAccountInput{Email: "a@example.com", Password: "pw"}, wantField: "password"},
		{name: "missing password", input: CreateAccountInput{Email: "a@example.com"}, wantField: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newMockUserService()

			_, err := svc.CreateAccount(context.Background(), tt.input)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			verr, _ := domain.AsValidationError(err)
			if _, ok := verr.Fields[tt.wantField]; !ok {
				t.Errorf("expected error on %q, got %v", tt.wantField, verr.Fields)
			}
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestUserService_CreateAccount_Duplicate(t *testing.T) {
	svc, repo := newMockUserService()
	repo.On("ExistsByEmail", mock.Anything, "dup@example.com").Return(true, nil)

	_, err := svc.CreateAccount(context.Background(), CreateAccountInput{Email: "dup@EXAMPLE.com", Password: "test123"})
	verr, ok := domain.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{msgEmailTaken}, verr.Fields["email"])
}

func TestUserService_CreateAccount_RepoError(t *testing.T) {
	svc, repo := newMockUserService()
	repo.On("ExistsByEmail", mock.Anything, "a@example.com").Return(false, errors.New("disk on fire"))

	_, err := svc.CreateAccount(context.Background(), CreateAccountInput{Email: "a@example.com", Password: "test123"})
	assert.ErrorIs(t, err, ErrInternalError)
}

func TestUserService_CreatePrivilegedAccount(t *testing.T) {
	svc, repo := newMockUserService()
	repo.On("ExistsByEmail", mock.Anything, "admin@example.com").Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	out, err := svc.CreatePrivilegedAccount(context.Background(), CreateAccountInput{Email: "admin@example.com", Password: "test123"})
	require.NoError(t, err)
	assert.True(t, out.User.IsStaff)
	assert.True(t, out.User.IsSuperuser)
	assert.True(t, out.User.IsActive)
}

func TestUserService_Authenticate(t *testing.T) {
	active := domain.NewUser("cook@example.com", hashFor(t, "secret1"), "Cook")
	active.ID = 1
	inactive := domain.NewUser("gone@example.com", hashFor(t, "secret1"), "")
	inactive.ID = 2
	inactive.IsActive = false

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "success", email: "cook@EXAMPLE.com", password: "secret1"},
		{name: "wrong password", email: "cook@example.com", password: "nope", wantErr: domain.ErrInvalidCredentials},
		{name: "unknown email", email: "who@example.com", password: "secret1", wantErr: domain.ErrInvalidCredentials},
		{name: "inactive", email: "gone@example.com", password: "secret1", wantErr: domain.ErrUserInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newMockUserService()
			repo.On("GetByEmail", mock.Anything, "cook@example.com").Return(active, nil).Maybe()
			repo.On("GetByEmail", mock.Anything, "gone@example.com").Return(inactive, nil).Maybe()
			repo.On("GetByEmail", mock.Anything, "who@example.com").Return(nil, domain.ErrUserNotFound).Maybe()

			user, err := svc.Authenticate(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, active.ID, user.ID)
		})
	}
}

func TestUserService_UpdateProfile(t *testing.T) {
	svc, repo := newMockUserService()
	user := domain.NewUser("cook@example.com", hashFor(t, "secret1"), "Cook")
	user.ID = 1
	oldHash := user.PasswordHash

	repo.On("GetByID", mock.Anything, int64(1)).Return(user, nil)
	repo.On("Update", mock.Anything, user).Return(nil)

	name := "Chef"
	password := "newsecret"
	updated, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Name: &name, Password: &password})
	require.NoError(t, err)

	assert.Equal(t, "Chef", updated.Name)
	assert.Equal(t, "cook@example.com", updated.Email)
	assert.NotEqual(t, oldHash, updated.PasswordHash)
	assert.True(t, svc.VerifyPassword(updated, "newsecret"))
	repo.AssertExpectations(t)
}

func TestUserService_UpdateProfile_EmailTaken(t *testing.T) {
	svc, repo := newMockUserService()
	user := domain.NewUser("cook@example.com", "hash", "")
	user.ID = 1

	repo.On("GetByID", mock.Anything, int64(1)).Return(user, nil)
	repo.On("ExistsByEmail", mock.Anything, "taken@example.com").Return(true, nil)

	email := "taken@Example.com"
	_, err := svc.UpdateProfile(context.Background(), UpdateProfileInput{UserID: 1, Email: &email})
	assert.ErrorIs(t, err, domain.ErrValidation)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUserService_GetByIDAndDelete(t *testing.T) {
	svc, repo := newMockUserService()
	repo.On("GetByID", mock.Anything, int64(9)).Return(nil, domain.ErrUserNotFound)
	repo.On("Delete", mock.Anything, int64(9)).Return(domain.ErrUserNotFound)
	repo.On("Delete", mock.Anything, int64(10)).Return(errors.New("locked"))

	_, err := svc.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(context.Background(), 9), domain.ErrUserNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), 10), ErrInternalError)
}

func TestUserService_ListClampsLimit(t *testing.T) {
	svc, repo := newMockUserService()
	repo.On("List", mock.Anything, repository.ListOptions{Limit: 100, Offset: 5}).
		Return(&repository.ListResult[domain.User]{Items: []*domain.User{{ID: 1}}, Total: 6}, nil)

	out, err := svc.List(context.Background(), ListUsersInput{Limit: 1000, Offset: 5})
	require.NoError(t, err)
	assert.Len(t, out.Users, 1)
	assert.EqualValues(t, 6, out.TotalCount)
	repo.AssertExpectations(t)
}
