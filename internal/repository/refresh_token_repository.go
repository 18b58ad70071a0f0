package repository

import (
	"context"
	"errors"
	"time"

	"github.com/SkylabMak/personalWebService/internal/domain/model"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// リフレッシュトークンの保存・取得・更新・削除
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// last_used_at を現在時刻に更新する
	UpdateLastUsed(ctx context.Context, tokenHash string) error
	// 無ければ何もしない（冪等）
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	// 期限切れ行の掃除。正しさには影響しない
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
