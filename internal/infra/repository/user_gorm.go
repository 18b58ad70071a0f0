package repository

import (
	"context"
	"errors"

	"github.com/SkylabMak/personalWebService/internal/domain/model"
	repo "github.com/SkylabMak/personalWebService/internal/repository"

	"gorm.io/gorm"
)

type userGormRepository struct {
	db *gorm.DB //DB接続（GORM）
}

// GORM実装
func NewUserRepository(db *gorm.DB) repo.UserRepository {
	return &userGormRepository{db: db}
}

// usernameで1件検索します。
func (r *userGormRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User

	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}

// IDで1件検索します。
func (r *userGormRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User

	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrUserNotFound
		}
		return nil, err
	}

	return &user, nil
}
