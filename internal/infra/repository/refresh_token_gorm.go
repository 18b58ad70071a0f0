package repository

import (
	"context"
	"errors"
	"time"

	"github.com/SkylabMak/personalWebService/internal/domain/model"
	repo "github.com/SkylabMak/personalWebService/internal/repository"

	"gorm.io/gorm"
)

type refreshTokenGormRepository struct {
	db *gorm.DB //DB接続（GORM）
}

// GORM実装
func NewRefreshTokenRepository(db *gorm.DB) repo.RefreshTokenRepository {
	return &refreshTokenGormRepository{db: db}
}

// リフレッシュトークンを保存。
func (r *refreshTokenGormRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	//タイムアウトやキャンセルをDB処理に伝える
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return err
	}
	return nil
}

// token_hashで1件検索します。
func (r *refreshTokenGormRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var token model.RefreshToken

	err := r.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		First(&token).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrRefreshTokenNotFound
		}
		return nil, err
	}

	return &token, nil
}

// last_used_at を現在時刻にします。
func (r *refreshTokenGormRepository) UpdateLastUsed(ctx context.Context, tokenHash string) error {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("last_used_at", &now)

	if result.Error != nil {
		return result.Error
	}

	// 更新件数が0なら「すでに削除済み/存在しない」の可能性
	if result.RowsAffected == 0 {
		return repo.ErrRefreshTokenNotFound
	}

	return nil
}

// token_hashで削除。対象が無くても成功扱い（冪等）。
func (r *refreshTokenGormRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	if err := r.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		Delete(&model.RefreshToken{}).Error; err != nil {
		return err
	}
	return nil
}

// 期限切れ行をまとめて削除し、削除件数を返します。
func (r *refreshTokenGormRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.RefreshToken{})

	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}
