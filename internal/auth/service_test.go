package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gatherly/internal/auth"
	"gatherly/internal/domain"
	"gatherly/internal/shared/config"
	"gatherly/internal/users"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) CreateUser(ctx context.Context, user *users.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *mockAuthRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*users.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *mockAuthRepo) UpdateUserPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	args := m.Called(ctx, userID, hashedPassword)
	return args.Error(0)
}

func (m *mockAuthRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func authConfig() *config.Config {
	cfg := config.Load()
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.JWTExpiresIn = 15 * time.Minute
	cfg.JWT.RefreshExpiresIn = time.Hour
	return cfg
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func activeUser(t *testing.T, password string) *users.User {
	return &users.User{
		ID:         uuid.New(),
		IdentityID: uuid.New(),
		FirstName:  "Alice",
		LastName:   "Nguyen",
		Email:      "alice@example.com",
		Password:   hashFor(t, password),
		Role:       users.RoleUser,
		IsActive:   true,
	}
}

func TestService_Register_CreatesUserAndIssuesTokens(t *testing.T) {
	repo := &mockAuthRepo{}
	repo.On("EmailExists", mock.Anything, "alice@example.com").Return(false, nil)

	var created *users.User
	repo.On("CreateUser", mock.Anything, mock.AnythingOfType("*users.User")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*users.User)
			created.ID = uuid.New() // the database assigns ids
		}).
		Return(nil)

	svc := auth.NewService(repo, authConfig())

	resp, err := svc.Register(context.Background(), &auth.RegisterRequest{
		FirstName: "Alice",
		LastName:  "Nguyen",
		Email:     "alice@example.com",
		Password:  "s3cret-pass",
	})
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, users.RoleUser, created.Role)
	assert.NotEqual(t, uuid.Nil, created.IdentityID, "a subject is minted at registration")
	assert.NotEqual(t, "s3cret-pass", created.Password, "passwords are stored hashed")
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("s3cret-pass")))

	assert.Equal(t, created.ID.String(), resp.User.ID)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, created.ID.String(), claims.UserID)
	assert.Equal(t, created.IdentityID.String(), claims.Subject)
	assert.Equal(t, "gatherly", claims.Issuer)

	refreshClaims, err := svc.ValidateToken(resp.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims.Type)
}

func TestService_Register_NormalizesRole(t *testing.T) {
	cases := map[string]struct {
		requested string
		want      users.Role
	}{
		"defaults to user":     {requested: "", want: users.RoleUser},
		"uppercases admin":     {requested: "admin", want: users.RoleAdmin},
		"unknown role demoted": {requested: "moderator", want: users.RoleUser},
		"accepts canonical":    {requested: "USER", want: users.RoleUser},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &mockAuthRepo{}
			repo.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)

			var created *users.User
			repo.On("CreateUser", mock.Anything, mock.AnythingOfType("*users.User")).
				Run(func(args mock.Arguments) { created = args.Get(1).(*users.User) }).
				Return(nil)

			svc := auth.NewService(repo, authConfig())
			_, err := svc.Register(context.Background(), &auth.RegisterRequest{
				FirstName: "Alice",
				LastName:  "Nguyen",
				Email:     "alice@example.com",
				Password:  "s3cret-pass",
				Role:      tc.requested,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, created.Role)
		})
	}
}

func TestService_Register_RejectsTakenEmail(t *testing.T) {
	repo := &mockAuthRepo{}
	repo.On("EmailExists", mock.Anything, "alice@example.com").Return(true, nil)

	svc := auth.NewService(repo, authConfig())

	_, err := svc.Register(context.Background(), &auth.RegisterRequest{
		FirstName: "Alice",
		LastName:  "Nguyen",
		Email:     "alice@example.com",
		Password:  "s3cret-pass",
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestService_Login_IssuesTokensForValidCredentials(t *testing.T) {
	user := activeUser(t, "s3cret-pass")
	repo := &mockAuthRepo{}
	repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(user, nil)

	svc := auth.NewService(repo, authConfig())

	resp, err := svc.Login(context.Background(), &auth.LoginRequest{
		Email:    "alice@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), resp.User.ID)
	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "USER", claims.Role)
}

func TestService_Login_RejectsBadCredentials(t *testing.T) {
	t.Run("unknown email", func(t *testing.T) {
		repo := &mockAuthRepo{}
		repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)

		svc := auth.NewService(repo, authConfig())
		_, err := svc.Login(context.Background(), &auth.LoginRequest{Email: "ghost@example.com", Password: "whatever"})

		// unknown account and wrong password are indistinguishable on purpose
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := &mockAuthRepo{}
		repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(activeUser(t, "s3cret-pass"), nil)

		svc := auth.NewService(repo, authConfig())
		_, err := svc.Login(context.Background(), &auth.LoginRequest{Email: "alice@example.com", Password: "guess"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("deactivated account", func(t *testing.T) {
		user := activeUser(t, "s3cret-pass")
		user.IsActive = false
		repo := &mockAuthRepo{}
		repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(user, nil)

		svc := auth.NewService(repo, authConfig())
		_, err := svc.Login(context.Background(), &auth.LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("infrastructure failure passes through", func(t *testing.T) {
		repo := &mockAuthRepo{}
		repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		svc := auth.NewService(repo, authConfig())
		_, err := svc.Login(context.Background(), &auth.LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	})
}

func TestService_RefreshToken_IssuesNewPair(t *testing.T) {
	user := activeUser(t, "s3cret-pass")
	repo := &mockAuthRepo{}
	repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(user, nil)
	repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

	svc := auth.NewService(repo, authConfig())

	resp, err := svc.Login(context.Background(), &auth.LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	pair, err := svc.RefreshToken(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := svc.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, user.ID.String(), claims.UserID)
}

func TestService_RefreshToken_RejectsAccessToken(t *testing.T) {
	user := activeUser(t, "s3cret-pass")
	repo := &mockAuthRepo{}
	repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(user, nil)

	svc := auth.NewService(repo, authConfig())
	resp, err := svc.Login(context.Background(), &auth.LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	// an access token must not mint new tokens
	_, err = svc.RefreshToken(context.Background(), resp.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestService_RefreshToken_RejectsVanishedUser(t *testing.T) {
	user := activeUser(t, "s3cret-pass")
	repo := &mockAuthRepo{}
	repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(user, nil)
	repo.On("GetUserByID", mock.Anything, user.ID).Return(nil, domain.ErrUserNotFound)

	svc := auth.NewService(repo, authConfig())
	resp, err := svc.Login(context.Background(), &auth.LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	_, err = svc.RefreshToken(context.Background(), resp.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestService_ValidateToken_RejectsBadTokens(t *testing.T) {
	svc := auth.NewService(&mockAuthRepo{}, authConfig())

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expiredCfg := authConfig()
		expiredCfg.JWT.JWTExpiresIn = -time.Minute

		user := activeUser(t, "s3cret-pass")
		repo := &mockAuthRepo{}
		repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(user, nil)

		expiredSvc := auth.NewService(repo, expiredCfg)
		resp, err := expiredSvc.Login(context.Background(), &auth.LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
		require.NoError(t, err)

		_, err = expiredSvc.ValidateToken(resp.AccessToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("foreign signature", func(t *testing.T) {
		otherCfg := authConfig()
		otherCfg.JWT.Secret = "rotated-secret"

		user := activeUser(t, "s3cret-pass")
		repo := &mockAuthRepo{}
		repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(user, nil)

		otherSvc := auth.NewService(repo, otherCfg)
		resp, err := otherSvc.Login(context.Background(), &auth.LoginRequest{Email: "alice@example.com", Password: "s3cret-pass"})
		require.NoError(t, err)

		_, err = svc.ValidateToken(resp.AccessToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("unsigned token", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, auth.JWTClaims{
			UserID: uuid.New().String(),
			Type:   "access",
		})
		tokenString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateToken(tokenString)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestService_ChangePassword(t *testing.T) {
	t.Run("rotates the hash", func(t *testing.T) {
		user := activeUser(t, "old-pass")
		repo := &mockAuthRepo{}
		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

		var newHash string
		repo.On("UpdateUserPassword", mock.Anything, user.ID, mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) { newHash = args.String(2) }).
			Return(nil)

		svc := auth.NewService(repo, authConfig())
		err := svc.ChangePassword(context.Background(), user.ID, &auth.ChangePasswordRequest{
			CurrentPassword: "old-pass",
			NewPassword:     "new-pass",
		})
		require.NoError(t, err)
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("new-pass")))
	})

	t.Run("rejects wrong current password", func(t *testing.T) {
		user := activeUser(t, "old-pass")
		repo := &mockAuthRepo{}
		repo.On("GetUserByID", mock.Anything, user.ID).Return(user, nil)

		svc := auth.NewService(repo, authConfig())
		err := svc.ChangePassword(context.Background(), user.ID, &auth.ChangePasswordRequest{
			CurrentPassword: "guess",
			NewPassword:     "new-pass",
		})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		repo.AssertNotCalled(t, "UpdateUserPassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := &mockAuthRepo{}
		userID := uuid.New()
		repo.On("GetUserByID", mock.Anything, userID).Return(nil, domain.ErrUserNotFound)

		svc := auth.NewService(repo, authConfig())
		err := svc.ChangePassword(context.Background(), userID, &auth.ChangePasswordRequest{
			CurrentPassword: "old-pass",
			NewPassword:     "new-pass",
		})
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}
