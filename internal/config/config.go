package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL string // Postgres接続文字列

	JWTSecret        string        // JWT署名シークレット
	JWTAccessExpiry  time.Duration // アクセストークンの有効期限
	JWTRefreshExpiry time.Duration // リフレッシュトークンの有効期限

	Argon2Salt        string // パスワードハッシュ用の固定ソルト（base64）
	Argon2MemoryCost  uint32 // argon2 メモリコスト（KiB）
	Argon2Iterations  uint32 // argon2 反復回数
	Argon2Parallelism uint8  // argon2 並列度
}

// Loadは環境変数から設定を読み込む
func Load() (Config, error) {
	accessExpiry, err := envSeconds("JWT_ACCESS_EXPIRY", 900)
	if err != nil {
		return Config{}, err
	}
	refreshExpiry, err := envSeconds("JWT_REFRESH_EXPIRY", 2592000)
	if err != nil {
		return Config{}, err
	}

	memoryCost, err := envUint32("ARGON2_MEMORY_COST", 65536)
	if err != nil {
		return Config{}, err
	}
	iterations, err := envUint32("ARGON2_ITERATIONS", 2)
	if err != nil {
		return Config{}, err
	}
	parallelism, err := envUint32("ARGON2_PARALLELISM", 1)
	if err != nil {
		return Config{}, err
	}
	if parallelism == 0 || parallelism > 255 {
		return Config{}, fmt.Errorf("ARGON2_PARALLELISM must be 1-255")
	}

	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL: databaseURL(),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTAccessExpiry:  accessExpiry,
		JWTRefreshExpiry: refreshExpiry,

		Argon2Salt:        os.Getenv("ARGON2_SALT"),
		Argon2MemoryCost:  memoryCost,
		Argon2Iterations:  iterations,
		Argon2Parallelism: uint8(parallelism),
	}

	//必須チェック
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Argon2Salt == "" {
		return Config{}, fmt.Errorf("ARGON2_SALT is required")
	}

	return cfg, nil
}

// DATABASE_URLがあれば最優先。なければPOSTGRES_*から組み立てる
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}

	port := getenv("POSTGRES_PORT", "5432")
	user := getenv("POSTGRES_USER", "postgres")
	pass := getenv("POSTGRES_PASSWORD", "postgres")
	name := getenv("POSTGRES_DB", "app")
	ssl := getenv("POSTGRES_SSLMODE", "disable")

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, pass, name, ssl,
	)
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// 秒数の環境変数をtime.Durationで返す
func envSeconds(key string, def int64) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Second, nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return time.Duration(i) * time.Second, nil
}

func envUint32(key string, def uint32) (uint32, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return uint32(i), nil
}
