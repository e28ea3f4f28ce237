package signin

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/targup/targup/backend/auth-service/internal/accounts"
	"github.com/targup/targup/backend/auth-service/internal/apperrors"
	"github.com/targup/targup/backend/auth-service/internal/credentials"
	"github.com/targup/targup/backend/auth-service/internal/models"
	"github.com/targup/targup/backend/auth-service/internal/providers"
	"github.com/targup/targup/backend/auth-service/internal/sessions"
	"github.com/targup/targup/backend/auth-service/internal/tokens"
	"github.com/targup/targup/backend/auth-service/internal/users"
)

// fakeProvider returns a canned profile for any code.
type fakeProvider struct {
	name       string
	traits     providers.Traits
	profile    *providers.Profile
	exchangeEr error
}

func (f *fakeProvider) Name() string             { return f.name }
func (f *fakeProvider) Traits() providers.Traits { return f.traits }

func (f *fakeProvider) AuthURL(state string) string {
	return "https://idp.test/" + f.name + "?state=" + state
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code string) (*providers.Tokens, error) {
	if f.exchangeEr != nil {
		return nil, f.exchangeEr
	}
	return &providers.Tokens{AccessToken: "at-" + code}, nil
}

func (f *fakeProvider) FetchProfile(context.Context, *providers.Tokens) (*providers.Profile, error) {
	p := *f.profile
	return &p, nil
}

func google(profile providers.Profile) *fakeProvider {
	return &fakeProvider{name: "google", traits: providers.Traits{PasswordPlaceholder: "oauth-google"}, profile: &profile}
}

func instagram(profile providers.Profile) *fakeProvider {
	return &fakeProvider{name: "instagram", traits: providers.Traits{EmailDomain: "instagram.com", RequireDisplayName: true, PasswordPlaceholder: "oauth-instagram"}, profile: &profile}
}

// MockUserRepository is a testify mock of users.Repository.
type MockUserRepository struct{ mock.Mock }

func (m *MockUserRepository) FindByID(ctx context.Context, id credentials.UserID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email credentials.Email) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmailString(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Save(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id credentials.UserID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) Exists(ctx context.Context, email credentials.Email) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// MockAccountRepository is a testify mock of accounts.Repository.
type MockAccountRepository struct{ mock.Mock }

func (m *MockAccountRepository) FindByProvider(ctx context.Context, provider, providerID string) (*models.OAuthAccount, error) {
	args := m.Called(ctx, provider, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OAuthAccount), args.Error(1)
}

func (m *MockAccountRepository) FindByUserID(ctx context.Context, userID credentials.UserID) ([]*models.OAuthAccount, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]*models.OAuthAccount), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, a *models.OAuthAccount) error {
	return m.Called(ctx, a).Error(0)
}

type fixture struct {
	svc      *Service
	users    *users.MemoryRepository
	accounts *accounts.MemoryRepository
	issuer   *tokens.Issuer
	sessions *sessions.Service
}

func newIssuer(t *testing.T) *tokens.Issuer {
	t.Helper()
	i, err := tokens.NewIssuer(tokens.Options{Secret: []byte("signin-test-secret-32-bytes-xxxxx")})
	require.NoError(t, err)
	return i
}

func newFixture(t *testing.T, ps ...providers.Provider) *fixture {
	t.Helper()
	reg, err := providers.NewRegistry(ps...)
	require.NoError(t, err)
	f := &fixture{
		users:    users.NewMemoryRepository(),
		accounts: accounts.NewMemoryRepository(),
		issuer:   newIssuer(t),
		sessions: sessions.NewService(sessions.NewMemoryRepository(), nil),
	}
	f.svc = NewService(reg, f.users, f.accounts, f.issuer, f.sessions)
	return f
}

func TestFirstGoogleSignIn_CreatesUserAndLinkOnce(t *testing.T) {
	ctx := context.Background()
	reg, err := providers.NewRegistry(google(providers.Profile{ExternalID: "g1", Email: "a@x.com", DisplayName: "A"}))
	require.NoError(t, err)

	ur := new(MockUserRepository)
	ar := new(MockAccountRepository)
	ar.On("FindByProvider", mock.Anything, "google", "g1").Return(nil, nil).Once()
	ur.On("FindByEmail", mock.Anything, credentials.MustEmail("a@x.com")).Return(nil, nil).Once()
	ur.On("Save", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil).Once()
	ar.On("Create", mock.Anything, mock.MatchedBy(func(a *models.OAuthAccount) bool {
		return a.Provider == "google" && a.ProviderID == "g1" && a.Email == "a@x.com"
	})).Return(nil).Once()

	res, err := NewService(reg, ur, ar, newIssuer(t), nil).CompleteProviderSignIn(ctx, "google", "c1")
	require.NoError(t, err)

	assert.Equal(t, OutcomeNewUser, res.Outcome)
	assert.Equal(t, "a@x.com", res.User.Email.String())
	assert.Equal(t, "A", res.User.Name)
	assert.True(t, res.User.IsActive)
	assert.True(t, res.User.Password.IsHashed())
	assert.Equal(t, "oauth-google", res.User.Password.Value())
	assert.Equal(t, res.User.ID.String(), res.Claims.Subject)
	assert.Equal(t, "google", res.Claims.Provider)

	saved := ur.Calls[1].Arguments.Get(1).(*models.User)
	linked := ar.Calls[1].Arguments.Get(1).(*models.OAuthAccount)
	assert.Equal(t, saved.ID, linked.UserID)

	ur.AssertNumberOfCalls(t, "Save", 1)
	ar.AssertNumberOfCalls(t, "Create", 1)
	ur.AssertExpectations(t)
	ar.AssertExpectations(t)
}

func TestSecondSignIn_ReturnsSameUserWithoutWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, google(providers.Profile{ExternalID: "g1", Email: "a@x.com", DisplayName: "A"}))

	first, err := f.svc.CompleteProviderSignIn(ctx, "google", "c1")
	require.NoError(t, err)

	// second call goes through mocks seeded from the first result
	ur := new(MockUserRepository)
	ar := new(MockAccountRepository)
	acct, err := f.accounts.FindByProvider(ctx, "google", "g1")
	require.NoError(t, err)
	ar.On("FindByProvider", mock.Anything, "google", "g1").Return(acct, nil)
	ur.On("FindByID", mock.Anything, first.User.ID).Return(first.User, nil)
	reg, _ := providers.NewRegistry(google(providers.Profile{ExternalID: "g1", Email: "a@x.com", DisplayName: "A"}))

	second, err := NewService(reg, ur, ar, f.issuer, nil).CompleteProviderSignIn(ctx, "google", "c2")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReturning, second.Outcome)
	assert.Equal(t, first.User.ID, second.User.ID)
	ur.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	ur.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	ar.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProviderLookupPrecedesEmail(t *testing.T) {
	ctx := context.Background()
	// the provider now reports a different email, but the link decides
	p := google(providers.Profile{ExternalID: "g1", Email: "a@x.com", DisplayName: "A"})
	f := newFixture(t, p)
	first, err := f.svc.CompleteProviderSignIn(ctx, "google", "c1")
	require.NoError(t, err)

	p.profile.Email = "renamed@x.com"
	again, err := f.svc.CompleteProviderSignIn(ctx, "google", "c2")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, again.User.ID)
	assert.Equal(t, "a@x.com", again.User.Email.String())

	ok, err := f.users.Exists(ctx, credentials.MustEmail("renamed@x.com"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInstagramPseudoEmailDoesNotMatchLocalUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, instagram(providers.Profile{ExternalID: "i1", DisplayName: "u"}))
	local, err := models.NewUser(credentials.MustEmail("u@instagram.com"), credentials.HashedPassword("digest"), "")
	require.NoError(t, err)
	require.NoError(t, f.users.Save(ctx, local))

	res, err := f.svc.CompleteProviderSignIn(ctx, "instagram", "c")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNewUser, res.Outcome)
	assert.NotEqual(t, local.ID, res.User.ID)
	assert.Equal(t, "i1@instagram.com", res.User.Email.String())
	assert.Equal(t, "u", res.User.Name)
	assert.Equal(t, "oauth-instagram", res.User.Password.Value())

	acct, err := f.accounts.FindByProvider(ctx, "instagram", "i1")
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "i1@instagram.com", acct.Email)
}

func TestInstagramLinksExistingUserWithMatchingPseudoEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, instagram(providers.Profile{ExternalID: "i1", DisplayName: "u"}))
	existing, err := models.NewUser(credentials.MustEmail("i1@instagram.com"), credentials.HashedPassword("digest"), "Existing")
	require.NoError(t, err)
	require.NoError(t, f.users.Save(ctx, existing))

	res, err := f.svc.CompleteProviderSignIn(ctx, "instagram", "c")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLinked, res.Outcome)
	assert.Equal(t, existing.ID, res.User.ID)
	assert.Equal(t, "Existing", res.User.Name)

	linked, err := f.accounts.FindByUserID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Len(t, linked, 1)
}

func TestGoogleLinksExistingLocalUserByEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, google(providers.Profile{ExternalID: "g9", Email: "Alice@Example.com", DisplayName: "Alice"}))
	svc := users.NewService(f.users, users.PasswordPolicy{MinLength: 8, HashCost: 4})
	reg, err := svc.Register(ctx, "alice@example.com", "correct horse", "Alice L")
	require.NoError(t, err)

	res, err := f.svc.CompleteProviderSignIn(ctx, "google", "c")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLinked, res.Outcome)
	assert.Equal(t, reg.ID, res.User.ID.String())

	// the local password still works after linking
	_, err = svc.Authenticate(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
}

func TestUnverifiedEmailDoesNotLinkLocalUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, google(providers.Profile{ExternalID: "g9", Email: "alice@example.com", EmailUnverified: true}))
	svc := users.NewService(f.users, users.PasswordPolicy{MinLength: 8, HashCost: 4})
	_, err := svc.Register(ctx, "alice@example.com", "correct horse", "Alice")
	require.NoError(t, err)

	_, err = f.svc.CompleteProviderSignIn(ctx, "google", "c")
	require.ErrorIs(t, err, apperrors.ErrInvalidAuthCode)

	linked, err := f.accounts.FindByProvider(ctx, "google", "g9")
	require.NoError(t, err)
	assert.Nil(t, linked)
}

func TestInvalidProfiles(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
		wantErr  error
	}{
		{"google missing id", google(providers.Profile{Email: "a@x.com"}), apperrors.ErrInvalidAuthCode},
		{"google missing email", google(providers.Profile{ExternalID: "g1"}), apperrors.ErrInvalidAuthCode},
		{"instagram missing id", instagram(providers.Profile{DisplayName: "u"}), apperrors.ErrInvalidAuthCode},
		{"instagram missing username", instagram(providers.Profile{ExternalID: "i1"}), apperrors.ErrInvalidAuthCode},
		{"malformed email", google(providers.Profile{ExternalID: "g1", Email: "not-an-email"}), apperrors.ErrInvalidFormat},
		{"unverified email", google(providers.Profile{ExternalID: "g1", Email: "a@x.com", EmailUnverified: true}), apperrors.ErrInvalidAuthCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, tt.provider)

			_, err := f.svc.CompleteProviderSignIn(ctx, tt.provider.name, "c")
			require.ErrorIs(t, err, tt.wantErr)

			// no entities were created
			linked, err := f.accounts.FindByProvider(ctx, tt.provider.name, tt.provider.profile.ExternalID)
			require.NoError(t, err)
			assert.Nil(t, linked)
			if tt.provider.profile.Email != "" {
				if e, err := credentials.NewEmail(tt.provider.profile.Email); err == nil {
					ok, _ := f.users.Exists(ctx, e)
					assert.False(t, ok)
				}
			}
		})
	}
}

func TestDanglingAccountIsUserNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, google(providers.Profile{ExternalID: "g1", Email: "a@x.com"}))
	require.NoError(t, f.accounts.Create(ctx, models.NewOAuthAccount("google", "g1", "a@x.com", credentials.NewUserID())))

	_, err := f.svc.CompleteProviderSignIn(ctx, "google", "c")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)

	ok, err := f.users.Exists(ctx, credentials.MustEmail("a@x.com"))
	require.NoError(t, err)
	assert.False(t, ok, "a dangling link must not fall through to email lookup")
}

func TestUnknownProviderAndExchangeFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("network down")
	p := google(providers.Profile{ExternalID: "g1", Email: "a@x.com"})
	p.exchangeEr = boom
	f := newFixture(t, p)

	_, err := f.svc.CompleteProviderSignIn(ctx, "myspace", "c")
	require.ErrorIs(t, err, apperrors.ErrUnknownProvider)

	_, err = f.svc.AuthURL("myspace", "s")
	require.ErrorIs(t, err, apperrors.ErrUnknownProvider)

	_, err = f.svc.CompleteProviderSignIn(ctx, "google", "c")
	require.ErrorIs(t, err, boom)
}

func TestAuthURL(t *testing.T) {
	f := newFixture(t, google(providers.Profile{}))
	u, err := f.svc.AuthURL("google", "st")
	require.NoError(t, err)
	assert.Equal(t, "https://idp.test/google?state=st", u)
}

func TestDuplicateUserSaveRetriesEmailLookup(t *testing.T) {
	ctx := context.Background()
	reg, _ := providers.NewRegistry(google(providers.Profile{ExternalID: "g1", Email: "a@x.com"}))
	winner, err := models.NewUser(credentials.MustEmail("a@x.com"), credentials.HashedPassword("oauth-google"), "")
	require.NoError(t, err)

	ur := new(MockUserRepository)
	ar := new(MockAccountRepository)
	ar.On("FindByProvider", mock.Anything, "google", "g1").Return(nil, nil)
	ur.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, nil).Once()
	ur.On("Save", mock.Anything, mock.Anything).Return(apperrors.ErrDuplicate).Once()
	ur.On("FindByEmail", mock.Anything, mock.Anything).Return(winner, nil).Once()
	ar.On("Create", mock.Anything, mock.MatchedBy(func(a *models.OAuthAccount) bool { return a.UserID == winner.ID })).Return(nil).Once()

	res, err := NewService(reg, ur, ar, newIssuer(t), nil).CompleteProviderSignIn(ctx, "google", "c")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, res.User.ID)
	assert.Equal(t, OutcomeLinked, res.Outcome)
	ur.AssertExpectations(t)
	ar.AssertExpectations(t)
}

func TestDuplicateLinkAdoptsExistingOwner(t *testing.T) {
	ctx := context.Background()
	reg, _ := providers.NewRegistry(google(providers.Profile{ExternalID: "g1", Email: "a@x.com"}))
	owner, err := models.NewUser(credentials.MustEmail("a@x.com"), credentials.HashedPassword("oauth-google"), "")
	require.NoError(t, err)
	acct := models.NewOAuthAccount("google", "g1", "a@x.com", owner.ID)

	ur := new(MockUserRepository)
	ar := new(MockAccountRepository)
	ar.On("FindByProvider", mock.Anything, "google", "g1").Return(nil, nil).Once()
	ur.On("FindByEmail", mock.Anything, mock.Anything).Return(owner, nil).Once()
	ar.On("Create", mock.Anything, mock.Anything).Return(apperrors.ErrDuplicate).Once()
	ar.On("FindByProvider", mock.Anything, "google", "g1").Return(acct, nil).Once()
	ur.On("FindByID", mock.Anything, owner.ID).Return(owner, nil).Once()

	res, err := NewService(reg, ur, ar, newIssuer(t), nil).CompleteProviderSignIn(ctx, "google", "c")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, res.User.ID)
	assert.Equal(t, OutcomeReturning, res.Outcome)
	ur.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	ur.AssertExpectations(t)
	ar.AssertExpectations(t)
}

func TestDuplicateLinkRemovesUserCreatedForIt(t *testing.T) {
	ctx := context.Background()
	reg, _ := providers.NewRegistry(google(providers.Profile{ExternalID: "g1", Email: "b@x.com"}))
	owner, err := models.NewUser(credentials.MustEmail("a@x.com"), credentials.HashedPassword("oauth-google"), "")
	require.NoError(t, err)
	acct := models.NewOAuthAccount("google", "g1", "a@x.com", owner.ID)

	var created *models.User
	ur := new(MockUserRepository)
	ar := new(MockAccountRepository)
	ar.On("FindByProvider", mock.Anything, "google", "g1").Return(nil, nil).Once()
	ur.On("FindByEmail", mock.Anything, mock.Anything).Return(nil, nil).Once()
	ur.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.User)
	}).Return(nil).Once()
	ar.On("Create", mock.Anything, mock.Anything).Return(apperrors.ErrDuplicate).Once()
	ur.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()
	ar.On("FindByProvider", mock.Anything, "google", "g1").Return(acct, nil).Once()
	ur.On("FindByID", mock.Anything, owner.ID).Return(owner, nil).Once()

	res, err := NewService(reg, ur, ar, newIssuer(t), nil).CompleteProviderSignIn(ctx, "google", "c")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, res.User.ID)
	require.NotNil(t, created)
	ur.AssertCalled(t, "Delete", mock.Anything, created.ID)
	ur.AssertExpectations(t)
	ar.AssertExpectations(t)
}

func TestConcurrentFirstSignInsConvergeOnOneUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, google(providers.Profile{ExternalID: "g1", Email: "a@x.com"}))

	const n = 12
	ids := make(chan credentials.UserID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.CompleteProviderSignIn(ctx, "google", "c")
			if assert.NoError(t, err) {
				ids <- res.User.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first credentials.UserID
	for id := range ids {
		if first.IsZero() {
			first = id
		}
		assert.Equal(t, first, id)
	}
	linked, err := f.accounts.FindByUserID(ctx, first)
	require.NoError(t, err)
	assert.Len(t, linked, 1)
}

func TestSignInRecordsSessionAndTokenVerifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, google(providers.Profile{ExternalID: "g1", Email: "a@x.com"}))

	res, err := f.svc.CompleteProviderSignInWithMeta(ctx, "google", "c", sessions.Meta{UserAgent: "ua"})
	require.NoError(t, err)

	claims, err := f.issuer.Verify(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID.String(), claims.Subject)

	active, err := f.sessions.ListActive(ctx, res.User.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ua", active[0].UserAgent)
	assert.Equal(t, res.Token, active[0].Token.String())
}
