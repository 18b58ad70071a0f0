package repository

import (
	"context"
	"errors"

	"github.com/SkylabMak/personalWebService/internal/domain/model"
)

// ユーザーが見つかりませんを統一
var ErrUserNotFound = errors.New("user not found")

// 認証側からは参照のみ
type UserRepository interface {
	// usernameからユーザーを1件取得する
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// IDからユーザーを1件取得する
	FindByID(ctx context.Context, userID string) (*model.User, error)
}
