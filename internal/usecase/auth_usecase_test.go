package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/SkylabMak/personalWebService/internal/domain/model"
	"github.com/SkylabMak/personalWebService/internal/password"
	"github.com/SkylabMak/personalWebService/internal/repository"
	"github.com/SkylabMak/personalWebService/internal/token"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// Mock: UserRepository
// =====================

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

// =====================
// Mock: RefreshTokenRepository
// =====================

type MockRefreshTokenRepository struct {
	mock.Mock
}

func (m *MockRefreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	rt, _ := args.Get(0).(*model.RefreshToken)
	return rt, args.Error(1)
}

func (m *MockRefreshTokenRepository) UpdateLastUsed(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockRefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// =====================
// Mock: AuthValidator
// =====================

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateLogin(ctx context.Context, username string, password string) error {
	args := m.Called(ctx, username, password)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateRefresh(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateLogout(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

// =====================
// Helper
// =====================

const (
	testSecret     = "test-secret"
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 30 * 24 * time.Hour
)

func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()

	salt := base64.RawStdEncoding.EncodeToString([]byte("unit-test-salt-16"))
	h, err := password.New(salt, 8, 1, 1)
	require.NoError(t, err)
	return h
}

func newTestTokens() *token.Service {
	return token.NewService(testSecret, testAccessTTL)
}

func newAuthUC(
	t *testing.T,
	userRepo *MockUserRepository,
	rtRepo *MockRefreshTokenRepository,
	v *MockAuthValidator,
) *AuthUsecase {
	t.Helper()

	return NewAuthUsecase(
		userRepo,
		rtRepo,
		newTestHasher(t),
		newTestTokens(),
		v,
		zerolog.Nop(),
		testAccessTTL,
		testRefreshTTL,
	)
}

func testUser(t *testing.T, plainPassword string) *model.User {
	t.Helper()

	return &model.User{
		ID:           "11111111-1111-1111-1111-111111111111",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: newTestHasher(t).Hash(plainPassword),
		Role:         model.RoleUser,
	}
}

// =====================
// Login
// =====================

func TestLogin_Success(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	user := testUser(t, "correct")

	v.On("ValidateLogin", ctx, "alice", "correct").Return(nil)
	userRepo.On("FindByUsername", ctx, "alice").Return(user, nil)

	var savedRT *model.RefreshToken
	rtRepo.On("Create", ctx, mock.AnythingOfType("*model.RefreshToken")).
		Run(func(args mock.Arguments) {
			savedRT = args.Get(1).(*model.RefreshToken)
		}).
		Return(nil)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	out, err := uc.Login(ctx, LoginInput{Username: "alice", Password: "correct", UserAgent: "go-test/1.0"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer", out.TokenType)
	assert.Equal(t, int64(testAccessTTL.Seconds()), out.ExpiresIn)
	assert.Equal(t, int64(testRefreshTTL.Seconds()), out.RefreshTokenExpiresIn)
	assert.Equal(t, user.ID, out.User.ID)
	assert.Equal(t, "alice", out.User.Username)
	assert.Equal(t, string(model.RoleUser), out.User.Role)

	//発行直後のaccess tokenは同じ鍵で検証できて、subはユーザーID
	claims, err := newTestTokens().VerifyAccessToken(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, string(model.RoleUser), claims.Role)

	//保存されるのは平文ではなくhash
	require.NotNil(t, savedRT)
	assert.Equal(t, user.ID, savedRT.UserID)
	assert.NotEqual(t, out.RefreshToken, savedRT.TokenHash)
	assert.Equal(t, newTestTokens().HashSecret(out.RefreshToken), savedRT.TokenHash)
	assert.True(t, savedRT.ExpiresAt.After(time.Now()))
	assert.Nil(t, savedRT.LastUsedAt)
	require.NotNil(t, savedRT.DeviceInfo)
	assert.Equal(t, "go-test/1.0", *savedRT.DeviceInfo)

	rtRepo.AssertExpectations(t)
}

// 不在ユーザーとパスワード不一致はどちらも同じ401
func TestLogin_UnknownUser(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	v.On("ValidateLogin", ctx, "ghost", "whatever").Return(nil)
	userRepo.On("FindByUsername", ctx, "ghost").Return(nil, repository.ErrUserNotFound)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Login(ctx, LoginInput{Username: "ghost", Password: "whatever"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogin_WrongPassword(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	user := testUser(t, "correct")

	v.On("ValidateLogin", ctx, "alice", "incorrect").Return(nil)
	userRepo.On("FindByUsername", ctx, "alice").Return(user, nil)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Login(ctx, LoginInput{Username: "alice", Password: "incorrect"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	rtRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// 保存ハッシュ壊れは401ではなく500
func TestLogin_MalformedStoredHash(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	user := testUser(t, "correct")
	user.PasswordHash = "not-a-phc-string"

	v.On("ValidateLogin", ctx, "alice", "correct").Return(nil)
	userRepo.On("FindByUsername", ctx, "alice").Return(user, nil)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Login(ctx, LoginInput{Username: "alice", Password: "correct"})
	assert.ErrorIs(t, err, ErrInternal)
}

// インフラ異常は認証失敗と区別して500
func TestLogin_StoreFailure(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	v.On("ValidateLogin", ctx, "alice", "correct").Return(nil)
	userRepo.On("FindByUsername", ctx, "alice").Return(nil, errors.New("connection refused"))

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Login(ctx, LoginInput{Username: "alice", Password: "correct"})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestLogin_ValidationError(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	v.On("ValidateLogin", ctx, "", "pw").Return(ErrValidation)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Login(ctx, LoginInput{Username: "", Password: "pw"})
	assert.ErrorIs(t, err, ErrValidation)

	userRepo.AssertNotCalled(t, "FindByUsername", mock.Anything, mock.Anything)
}

// =====================
// Refresh
// =====================

func validRefreshRow(t *testing.T, tokens *token.Service, secret string, userID string) *model.RefreshToken {
	t.Helper()

	now := time.Now()
	return &model.RefreshToken{
		ID:        "22222222-2222-2222-2222-222222222222",
		UserID:    userID,
		TokenHash: tokens.HashSecret(secret),
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now.Add(-time.Hour),
	}
}

func TestRefresh_Success(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	tokens := newTestTokens()
	user := testUser(t, "correct")
	secret := "some-refresh-secret"
	hash := tokens.HashSecret(secret)
	rt := validRefreshRow(t, tokens, secret, user.ID)

	v.On("ValidateRefresh", ctx, secret).Return(nil)
	rtRepo.On("FindByTokenHash", ctx, hash).Return(rt, nil)
	userRepo.On("FindByID", ctx, user.ID).Return(user, nil)
	rtRepo.On("UpdateLastUsed", ctx, hash).Return(nil)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	out, err := uc.Refresh(ctx, secret)
	require.NoError(t, err)

	assert.Equal(t, "Bearer", out.TokenType)
	assert.Equal(t, int64(testAccessTTL.Seconds()), out.ExpiresIn)

	claims, err := tokens.VerifyAccessToken(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)

	rtRepo.AssertCalled(t, "UpdateLastUsed", ctx, hash)
}

// ローテーション無し。同じシークレットで連続refreshでき、jtiは毎回変わる
func TestRefresh_SameSecretTwice(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	tokens := newTestTokens()
	user := testUser(t, "correct")
	secret := "some-refresh-secret"
	hash := tokens.HashSecret(secret)
	rt := validRefreshRow(t, tokens, secret, user.ID)

	v.On("ValidateRefresh", ctx, secret).Return(nil)
	rtRepo.On("FindByTokenHash", ctx, hash).Return(rt, nil)
	userRepo.On("FindByID", ctx, user.ID).Return(user, nil)
	rtRepo.On("UpdateLastUsed", ctx, hash).Return(nil)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	first, err := uc.Refresh(ctx, secret)
	require.NoError(t, err)
	second, err := uc.Refresh(ctx, secret)
	require.NoError(t, err)

	c1, err := tokens.VerifyAccessToken(first.AccessToken)
	require.NoError(t, err)
	c2, err := tokens.VerifyAccessToken(second.AccessToken)
	require.NoError(t, err)

	assert.NotEqual(t, c1.ID, c2.ID)
}

// 発行履歴の無いランダム文字列は401
func TestRefresh_UnknownSecret(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	v.On("ValidateRefresh", ctx, "never-issued").Return(nil)
	rtRepo.On("FindByTokenHash", ctx, mock.Anything).Return(nil, repository.ErrRefreshTokenNotFound)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Refresh(ctx, "never-issued")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

// 行が残っていても期限切れなら401（不明なtokenと区別しない）
func TestRefresh_ExpiredRow(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	tokens := newTestTokens()
	secret := "expired-secret"
	rt := validRefreshRow(t, tokens, secret, "user-1")
	rt.ExpiresAt = time.Now().Add(-time.Minute)

	v.On("ValidateRefresh", ctx, secret).Return(nil)
	rtRepo.On("FindByTokenHash", ctx, tokens.HashSecret(secret)).Return(rt, nil)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Refresh(ctx, secret)
	assert.ErrorIs(t, err, ErrUnauthorized)

	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	rtRepo.AssertNotCalled(t, "UpdateLastUsed", mock.Anything, mock.Anything)
}

// 持ち主が消えていたら401
func TestRefresh_UserVanished(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	tokens := newTestTokens()
	secret := "orphan-secret"
	rt := validRefreshRow(t, tokens, secret, "gone-user")

	v.On("ValidateRefresh", ctx, secret).Return(nil)
	rtRepo.On("FindByTokenHash", ctx, tokens.HashSecret(secret)).Return(rt, nil)
	userRepo.On("FindByID", ctx, "gone-user").Return(nil, repository.ErrUserNotFound)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Refresh(ctx, secret)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

// logoutと競合して行が消えても最後の1回は成功
func TestRefresh_RowDeletedDuringRefresh(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	tokens := newTestTokens()
	user := testUser(t, "correct")
	secret := "racing-secret"
	hash := tokens.HashSecret(secret)
	rt := validRefreshRow(t, tokens, secret, user.ID)

	v.On("ValidateRefresh", ctx, secret).Return(nil)
	rtRepo.On("FindByTokenHash", ctx, hash).Return(rt, nil)
	userRepo.On("FindByID", ctx, user.ID).Return(user, nil)
	rtRepo.On("UpdateLastUsed", ctx, hash).Return(repository.ErrRefreshTokenNotFound)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	out, err := uc.Refresh(ctx, secret)
	require.NoError(t, err)
	assert.NotEmpty(t, out.AccessToken)
}

// =====================
// Logout
// =====================

func TestLogout_Idempotent(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	tokens := newTestTokens()
	secret := "logout-secret"
	hash := tokens.HashSecret(secret)

	v.On("ValidateLogout", ctx, secret).Return(nil)
	rtRepo.On("DeleteByTokenHash", ctx, hash).Return(nil)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	//2回連続でも両方成功
	first, err := uc.Logout(ctx, secret)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Message)

	second, err := uc.Logout(ctx, secret)
	require.NoError(t, err)
	assert.Equal(t, first.Message, second.Message)

	rtRepo.AssertNumberOfCalls(t, "DeleteByTokenHash", 2)
}

func TestLogout_StoreFailure(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	v.On("ValidateLogout", ctx, "s").Return(nil)
	rtRepo.On("DeleteByTokenHash", ctx, mock.Anything).Return(errors.New("connection refused"))

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Logout(ctx, "s")
	assert.ErrorIs(t, err, ErrInternal)
}

// =====================
// Me
// =====================

func TestMe_Success(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	user := testUser(t, "correct")
	userRepo.On("FindByID", ctx, user.ID).Return(user, nil)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	out, err := uc.Me(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, user.ID, out.ID)
	assert.Equal(t, "alice", out.Username)
	assert.Equal(t, "alice@example.com", out.Email)
	assert.Equal(t, string(model.RoleUser), out.Role)
}

// 認証後にユーザーが消えていたら404
func TestMe_UserVanished(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	rtRepo := new(MockRefreshTokenRepository)
	v := new(MockAuthValidator)

	userRepo.On("FindByID", ctx, "gone").Return(nil, repository.ErrUserNotFound)

	uc := newAuthUC(t, userRepo, rtRepo, v)

	_, err := uc.Me(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
}
