package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tabishimam2/reciepe-app-api/internal/domain"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
)

// UserServiceConfig holds account policy settings.
type UserServiceConfig struct {
	// MinPasswordLength is enforced on create and password change.
	MinPasswordLength int

	// BcryptCost is the bcrypt work factor. Zero means bcrypt.DefaultCost.
	BcryptCost int
}

// UserService handles user management operations.
type UserService struct {
	userRepo repository.UserRepository
	config   UserServiceConfig
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, config UserServiceConfig, logger zerolog.Logger) *UserService {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		userRepo: userRepo,
		config:   config,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// CreateAccountInput contains the data needed to create a new user.
type CreateAccountInput struct {
	Email    string
	Password string
	Name     string
}

// CreateAccountOutput contains the result of creating a user.
type CreateAccountOutput struct {
	User *domain.User
}

// CreateAccount creates a regular user account. The email's domain part is
// lower-cased and only a bcrypt hash of the password is stored.
func (s *UserService) CreateAccount(ctx context.Context, input CreateAccountInput) (*CreateAccountOutput, error) {
	return s.create(ctx, input, false)
}

// CreatePrivilegedAccount creates an account with staff and superuser flags.
func (s *UserService) CreatePrivilegedAccount(ctx context.Context, input CreateAccountInput) (*CreateAccountOutput, error) {
	return s.create(ctx, input, true)
}

func (s *UserService) create(ctx context.Context, input CreateAccountInput, privileged bool) (*CreateAccountOutput, error) {
	input.Email = domain.NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	verr := &domain.ValidationError{}
	s.validateEmail(verr, input.Email)
	s.validatePassword(verr, input.Password)
	if utf8.RuneCountInString(input.Name) > maxCharLength {
		verr.Add("name", maxLengthMessage(maxCharLength))
	}
	if verr.HasErrors() {
		return nil, verr
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, domain.NewValidationError("email", msgEmailTaken)
	}

	passwordHash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := domain.NewUser(input.Email, passwordHash, input.Name)
	user.IsStaff = privileged
	user.IsSuperuser = privileged

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.NewValidationError("email", msgEmailTaken)
		}
		s.logger.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Bool("is_superuser", user.IsSuperuser).
		Msg("user created")

	return &CreateAccountOutput{User: user}, nil
}

// VerifyPassword reports whether plaintext matches the user's stored hash.
func (s *UserService) VerifyPassword(user *domain.User, plaintext string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext)) == nil
}

// Authenticate verifies user credentials and returns the user.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Log but don't expose whether the email exists
			s.logger.Debug().Msg("unknown email during authentication")
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("failed to load user for authentication")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if !s.VerifyPassword(user, password) {
		s.logger.Debug().Int64("user_id", user.ID).Msg("invalid password during authentication")
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Int64("user_id", user.ID).Msg("inactive user attempted authentication")
		return nil, domain.ErrUserInactive
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user authenticated")
	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// UpdateProfileInput carries a partial profile update. Nil fields are left
// unchanged.
type UpdateProfileInput struct {
	UserID   int64
	Email    *string
	Password *string
	Name     *string
}

// UpdateProfile applies a partial update to the user's own profile.
// A new password is re-hashed before it is stored.
func (s *UserService) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*domain.User, error) {
	user, err := s.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	verr := &domain.ValidationError{}
	if input.Email != nil {
		email := domain.NormalizeEmail(*input.Email)
		s.validateEmail(verr, email)
		if !verr.HasErrors() && email != user.Email {
			exists, err := s.userRepo.ExistsByEmail(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
			}
			if exists {
				verr.Add("email", msgEmailTaken)
			}
		}
		user.Email = email
	}
	if input.Password != nil {
		s.validatePassword(verr, *input.Password)
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if utf8.RuneCountInString(name) > maxCharLength {
			verr.Add("name", maxLengthMessage(maxCharLength))
		}
		user.Name = name
	}
	if verr.HasErrors() {
		return nil, verr
	}

	if input.Password != nil {
		hash, err := s.hashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, domain.NewValidationError("email", msgEmailTaken)
		}
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to update user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Bool("password_changed", input.Password != nil).
		Msg("profile updated")
	return user, nil
}

// Delete deletes a user account. Owned recipes and labels cascade.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Msg("user deleted")
	return nil
}

// ListUsersInput contains pagination options for listing users.
type ListUsersInput struct {
	Limit  int
	Offset int
}

// ListUsersOutput contains the result of listing users.
type ListUsersOutput struct {
	Users      []*domain.User
	TotalCount int64
}

// List returns all users with pagination.
func (s *UserService) List(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	result, err := s.userRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListUsersOutput{
		Users:      result.Items,
		TotalCount: result.Total,
	}, nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return "", fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}
	return string(hash), nil
}

// validateEmail expects an already normalised address.
func (s *UserService) validateEmail(verr *domain.ValidationError, email string) {
	if email == "" {
		verr.Add("email", msgRequired)
		return
	}
	if utf8.RuneCountInString(email) > maxCharLength {
		verr.Add("email", maxLengthMessage(maxCharLength))
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		verr.Add("email", msgInvalidEmail)
		return
	}
	local, host, ok := strings.Cut(email, "@")
	if !ok || local == "" || (host != "localhost" && !strings.Contains(host, ".")) {
		verr.Add("email", msgInvalidEmail)
	}
}

func (s *UserService) validatePassword(verr *domain.ValidationError, password string) {
	switch {
	case password == "":
		verr.Add("password", msgRequired)
	case utf8.RuneCountInString(password) < s.config.MinPasswordLength:
		verr.Add("password", fmt.Sprintf("Ensure this field has at least %d characters.", s.config.MinPasswordLength))
	case len(password) > 72:
		// bcrypt ignores everything past 72 bytes
		verr.Add("password", "Ensure this field has no more than 72 bytes.")
	}
}

func maxLengthMessage(n int) string {
	return fmt.Sprintf("Ensure this field has no more than %d characters.", n)
}
