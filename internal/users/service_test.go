package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
)

// MockRepository is a testify mock of Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByID(ctx context.Context, id credentials.UserID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) FindByEmail(ctx context.Context, email credentials.Email) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) FindByEmailString(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockRepository) Update(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id credentials.UserID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) Exists(ctx context.Context, email credentials.Email) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

var fastPolicy = PasswordPolicy{MinLength: 8, HashCost: 4}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		password  string
		setup     func(*MockRepository)
		wantErr   error
		wantSaved bool
	}{
		{
			name:     "creates user",
			email:    "Alice@Example.com",
			password: "correct horse",
			setup: func(r *MockRepository) {
				r.On("Exists", mock.Anything, credentials.MustEmail("alice@example.com")).Return(false, nil)
				r.On("Save", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil)
			},
			wantSaved: true,
		},
		{
			name:     "duplicate email fails without save",
			email:    "a@x.com",
			password: "12345678",
			setup: func(r *MockRepository) {
				r.On("Exists", mock.Anything, credentials.MustEmail("a@x.com")).Return(true, nil)
			},
			wantErr: apperrors.ErrUserAlreadyExists,
		},
		{
			name:     "invalid email",
			email:    "invalid-email",
			password: "12345678",
			setup:    func(*MockRepository) {},
			wantErr:  apperrors.ErrInvalidFormat,
		},
		{
			name:     "short password",
			email:    "a@x.com",
			password: "short",
			setup:    func(*MockRepository) {},
			wantErr:  apperrors.ErrTooShort,
		},
		{
			name:     "lost race on save",
			email:    "a@x.com",
			password: "12345678",
			setup: func(r *MockRepository) {
				r.On("Exists", mock.Anything, mock.Anything).Return(false, nil)
				r.On("Save", mock.Anything, mock.Anything).Return(apperrors.ErrDuplicate)
			},
			wantErr:   apperrors.ErrUserAlreadyExists,
			wantSaved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			tt.setup(repo)
			svc := NewService(repo, fastPolicy)

			resp, err := svc.Register(context.Background(), tt.email, tt.password, "Alice")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, resp)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "alice@example.com", resp.Email)
				assert.Equal(t, "Alice", resp.Name)
				assert.True(t, resp.IsActive)
				assert.NotEmpty(t, resp.ID)
			}
			if tt.wantSaved {
				repo.AssertCalled(t, "Save", mock.Anything, mock.Anything)
			} else {
				repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_Register_StoresHashNotPlaintext(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, fastPolicy)

	resp, err := svc.Register(context.Background(), "a@x.com", "correct horse", "")
	require.NoError(t, err)

	u, err := repo.FindByEmailString(context.Background(), resp.Email)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.Password.IsHashed())
	assert.NotEqual(t, "correct horse", u.Password.Value())
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo, fastPolicy)
	_, err := svc.Register(ctx, "a@x.com", "correct horse", "A")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "A@x.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email.String())

	_, err = svc.Authenticate(ctx, "a@x.com", "wrong horse")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@x.com", "correct horse")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "not-an-email", "correct horse")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	u.Deactivate()
	require.NoError(t, repo.Update(ctx, u))
	_, err = svc.Authenticate(ctx, "a@x.com", "correct horse")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestService_Authenticate_PlaceholderNeverMatches(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	u, err := models.NewUser(credentials.MustEmail("g@x.com"), credentials.HashedPassword("oauth-google"), "")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, u))

	_, err = NewService(repo, fastPolicy).Authenticate(ctx, "g@x.com", "oauth-google")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	svc := NewService(repo, fastPolicy)
	resp, err := svc.Register(ctx, "a@x.com", "correct horse", "A")
	require.NoError(t, err)
	id, err := credentials.ParseUserID(resp.ID)
	require.NoError(t, err)

	require.ErrorIs(t, svc.ChangePassword(ctx, id, "wrong", "battery staple"), apperrors.ErrInvalidCredentials)
	require.ErrorIs(t, svc.ChangePassword(ctx, id, "correct horse", "short"), apperrors.ErrTooShort)
	require.ErrorIs(t, svc.ChangePassword(ctx, credentials.NewUserID(), "x", "battery staple"), apperrors.ErrUserNotFound)

	require.NoError(t, svc.ChangePassword(ctx, id, "correct horse", "battery staple"))
	_, err = svc.Authenticate(ctx, "a@x.com", "battery staple")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "a@x.com", "correct horse")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestService_Get(t *testing.T) {
	repo := new(MockRepository)
	id := credentials.NewUserID()
	repo.On("FindByID", mock.Anything, id).Return(nil, nil)
	_, err := NewService(repo, fastPolicy).Get(context.Background(), id)
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)

	boom := errors.New("boom")
	other := credentials.NewUserID()
	repo.On("FindByID", mock.Anything, other).Return(nil, boom)
	_, err = NewService(repo, fastPolicy).Get(context.Background(), other)
	require.ErrorIs(t, err, boom)
}
