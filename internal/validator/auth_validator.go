package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/SkylabMak/personalWebService/internal/usecase"
)

type authValidator struct{}

// Usecaseは interface を依存注入
func NewAuthValidator() usecase.AuthValidator {
	return &authValidator{}
}

// ログインの入力を検証
func (v *authValidator) ValidateLogin(ctx context.Context, username string, password string) error {
	username = strings.TrimSpace(username)

	// 必須チェック
	if username == "" {
		return fmt.Errorf("%w: username is required", usecase.ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", usecase.ErrValidation)
	}

	return nil
}

// refresh入力を検証
func (v *authValidator) ValidateRefresh(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("%w: refresh_token is required", usecase.ErrValidation)
	}

	return nil
}

// logout入力を検証
func (v *authValidator) ValidateLogout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("%w: refresh_token is required", usecase.ErrValidation)
	}

	return nil
}
