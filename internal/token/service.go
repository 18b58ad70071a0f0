package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/SkylabMak/personalWebService/internal/domain/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 署名不正・期限切れ・形式不正をまとめた検証失敗
var ErrInvalidToken = errors.New("token: invalid access token")

// アクセストークンのクレーム。固定フィールドのみ（MapClaims禁止）
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// アクセストークンの発行・検証とリフレッシュシークレットの生成・ハッシュ化
type Service struct {
	secret    []byte
	accessTTL time.Duration
}

func NewService(secret string, accessTTL time.Duration) *Service {
	return &Service{
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}
}

// IssueAccessTokenはHS256で署名したJWTを発行する。jtiは毎回新規
func (s *Service) IssueAccessToken(userID string, role model.Role) (string, error) {
	now := time.Now()

	claims := AccessClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign access token: %w", err)
	}

	return signed, nil
}

// VerifyAccessTokenは署名と有効期限を検証してクレームを返す。
// 期限チェックにleewayは無し（expちょうどで失効）
func (s *Service) VerifyAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// NewRefreshSecretは256bitのランダム文字列を返す。
// クレームは持たない。サーバー側にはハッシュだけを保存する
func (s *Service) NewRefreshSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("token: generate refresh secret: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSecretはリフレッシュシークレットのSHA-256（hex）を返す。
// 高エントロピーな乱数が入力なので高速ハッシュで足りる。パスワードには使わない
func (s *Service) HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
