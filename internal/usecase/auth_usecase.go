package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/SkylabMak/personalWebService/internal/domain/model"
	"github.com/SkylabMak/personalWebService/internal/password"
	"github.com/SkylabMak/personalWebService/internal/repository"
	"github.com/SkylabMak/personalWebService/internal/token"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//401 認証失敗。ユーザー不在・パスワード不一致・token不正/期限切れは全部これに潰す
	ErrUnauthorized = errors.New("unauthorized")
	//404 認証後にユーザーが消えていた場合のみ
	ErrNotFound = errors.New("not found")
	//500 インフラ異常。詳細はログのみでクライアントへは出さない
	ErrInternal = errors.New("internal error")
)

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateLogin(ctx context.Context, username string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string) error
	ValidateLogout(ctx context.Context, refreshToken string) error
}

type AuthUserDTO struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginInput struct {
	Username  string
	Password  string
	UserAgent string // device_info用。ロジックには使わない
}

type LoginOutput struct {
	AccessToken           string      `json:"access_token"`
	RefreshToken          string      `json:"refresh_token"`
	TokenType             string      `json:"token_type"`
	ExpiresIn             int64       `json:"expires_in"`
	RefreshTokenExpiresIn int64       `json:"refresh_token_expires_in"`
	User                  AuthUserDTO `json:"user"`
}

type RefreshOutput struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type LogoutOutput struct {
	Message string `json:"message"`
}

type MeOutput struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// 認証の4操作（login/refresh/logout/me）をまとめるusecase
type AuthUsecase struct {
	users      repository.UserRepository
	sessions   repository.RefreshTokenRepository
	hasher     *password.Hasher
	tokens     *token.Service
	validator  AuthValidator
	log        zerolog.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthUsecase(
	users repository.UserRepository,
	sessions repository.RefreshTokenRepository,
	hasher *password.Hasher,
	tokens *token.Service,
	validator AuthValidator,
	log zerolog.Logger,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) *AuthUsecase {
	return &AuthUsecase{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		tokens:     tokens,
		validator:  validator,
		log:        log,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Loginはパスワード認証してaccess/refreshトークンを発行する。
// username不在とパスワード不一致は同じErrUnauthorizedに潰す（列挙対策）
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	//入力検証
	if err := u.validator.ValidateLogin(ctx, in.Username, in.Password); err != nil {
		return nil, err
	}

	//ユーザー取得
	user, err := u.users.FindByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		u.log.Error().Err(err).Msg("failed to fetch user")
		return nil, ErrInternal
	}

	//パスワード照合（argon2id）
	ok, err := u.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		// 保存ハッシュ壊れはクライアントのせいではない
		u.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash is malformed")
		return nil, ErrInternal
	}
	if !ok {
		return nil, ErrUnauthorized
	}

	//access token発行
	accessToken, err := u.tokens.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		u.log.Error().Err(err).Msg("failed to issue access token")
		return nil, ErrInternal
	}

	//refresh token発行（DBにはhashのみ保存）
	refreshSecret, err := u.tokens.NewRefreshSecret()
	if err != nil {
		u.log.Error().Err(err).Msg("failed to generate refresh secret")
		return nil, ErrInternal
	}

	now := time.Now()

	var deviceInfo *string
	if in.UserAgent != "" {
		deviceInfo = &in.UserAgent
	}

	// ログインごとに独立したセッション行を増やす。同時セッション数の上限は設けない
	rt := &model.RefreshToken{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		TokenHash:  u.tokens.HashSecret(refreshSecret),
		ExpiresAt:  now.Add(u.refreshTTL),
		CreatedAt:  now,
		LastUsedAt: nil,
		DeviceInfo: deviceInfo,
	}

	if err := u.sessions.Create(ctx, rt); err != nil {
		u.log.Error().Err(err).Msg("failed to save refresh token")
		return nil, ErrInternal
	}

	return &LoginOutput{
		AccessToken:           accessToken,
		RefreshToken:          refreshSecret,
		TokenType:             "Bearer",
		ExpiresIn:             int64(u.accessTTL.Seconds()),
		RefreshTokenExpiresIn: int64(u.refreshTTL.Seconds()),
		User: AuthUserDTO{
			ID:       user.ID,
			Username: user.Username,
			Role:     string(user.Role),
		},
	}, nil
}

// Refreshは有効なリフレッシュトークンと引き換えに新しいaccess tokenを返す。
// シークレット自体はローテーションしない（盗まれた場合はTTL満了まで有効。既知のトレードオフ）。
// 不明・期限切れ・持ち主消失はどれもErrUnauthorizedで区別させない
func (u *AuthUsecase) Refresh(ctx context.Context, refreshSecret string) (*RefreshOutput, error) {
	//入力検証
	if err := u.validator.ValidateRefresh(ctx, refreshSecret); err != nil {
		return nil, err
	}

	//DB照合
	tokenHash := u.tokens.HashSecret(refreshSecret)

	rt, err := u.sessions.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrUnauthorized
		}
		u.log.Error().Err(err).Msg("failed to find refresh token")
		return nil, ErrInternal
	}

	//期限切れ。行が残っていても失効扱い
	if !rt.ExpiresAt.After(time.Now()) {
		return nil, ErrUnauthorized
	}

	//持ち主取得
	user, err := u.users.FindByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		u.log.Error().Err(err).Msg("failed to fetch user")
		return nil, ErrInternal
	}

	//access再発行
	accessToken, err := u.tokens.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		u.log.Error().Err(err).Msg("failed to issue access token")
		return nil, ErrInternal
	}

	//last_used_at更新
	if err := u.sessions.UpdateLastUsed(ctx, tokenHash); err != nil {
		// logoutと競合して行が消えた場合は最後の1回として成功させる
		if !errors.Is(err, repository.ErrRefreshTokenNotFound) {
			u.log.Error().Err(err).Msg("failed to update refresh token usage")
			return nil, ErrInternal
		}
	}

	return &RefreshOutput{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(u.accessTTL.Seconds()),
	}, nil
}

// Logoutはリフレッシュトークンを失効させる。
// 既に無いhashを消しても成功（冪等）
func (u *AuthUsecase) Logout(ctx context.Context, refreshSecret string) (*LogoutOutput, error) {
	if err := u.validator.ValidateLogout(ctx, refreshSecret); err != nil {
		return nil, err
	}

	tokenHash := u.tokens.HashSecret(refreshSecret)

	if err := u.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil {
		u.log.Error().Err(err).Msg("failed to delete refresh token")
		return nil, ErrInternal
	}

	return &LogoutOutput{Message: "Logged out successfully"}, nil
}

// Meは公開プロフィールを返す。認証済みの後なのでNotFoundを出しても列挙リスクは無い
func (u *AuthUsecase) Me(ctx context.Context, userID string) (*MeOutput, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		u.log.Error().Err(err).Msg("failed to fetch user")
		return nil, ErrInternal
	}

	return &MeOutput{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
	}, nil
}
