package password

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// 構築時のパラメータ不正。起動時に落とす
	ErrInvalidParams = errors.New("password: invalid argon2 params")

	// 保存ハッシュが壊れている（認証失敗ではなくサーバー側の異常）
	ErrMalformedHash = errors.New("password: malformed password hash")
)

const keyLen = 32

// Argon2idの固定ソルト運用ハッシャー。
// ソルトはデプロイ時シークレット。変更すると既存ハッシュは全て無効になる
type Hasher struct {
	salt        []byte
	saltB64     string
	memoryCost  uint32
	iterations  uint32
	parallelism uint8
}

// Newはパラメータを検証してHasherを作る。不正ならここで失敗させる
func New(saltB64 string, memoryCost uint32, iterations uint32, parallelism uint8) (*Hasher, error) {
	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("%w: salt is not base64: %v", ErrInvalidParams, err)
	}
	if len(salt) < 8 {
		return nil, fmt.Errorf("%w: salt must be at least 8 bytes", ErrInvalidParams)
	}
	if iterations == 0 {
		return nil, fmt.Errorf("%w: iterations must be positive", ErrInvalidParams)
	}
	if parallelism == 0 {
		return nil, fmt.Errorf("%w: parallelism must be positive", ErrInvalidParams)
	}
	if memoryCost < 8*uint32(parallelism) {
		return nil, fmt.Errorf("%w: memory cost must be at least 8*parallelism KiB", ErrInvalidParams)
	}

	return &Hasher{
		salt:        salt,
		saltB64:     saltB64,
		memoryCost:  memoryCost,
		iterations:  iterations,
		parallelism: parallelism,
	}, nil
}

// Hashはパスワードを$argon2id$...形式でハッシュ化する。
// 固定ソルトなので同じ設定なら決定的
func (h *Hasher) Hash(password string) string {
	key := argon2.IDKey([]byte(password), h.salt, h.iterations, h.memoryCost, h.parallelism, keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memoryCost, h.iterations, h.parallelism,
		h.saltB64,
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// Verifyは保存ハッシュに埋まっているソルト・パラメータで再計算して比較する。
// 設定を後から変えても過去のハッシュは検証できる。
// パスワード不一致は (false, nil)。形式不正のみエラー
func (h *Hasher) Verify(password string, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	var memoryCost, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryCost, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if iterations == 0 || parallelism == 0 {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if len(expected) == 0 {
		return false, ErrMalformedHash
	}

	key := argon2.IDKey([]byte(password), salt, iterations, memoryCost, parallelism, uint32(len(expected)))

	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}
