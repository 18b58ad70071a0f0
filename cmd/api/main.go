package main

import (
	"context"
	"os"
	"time"

	"github.com/SkylabMak/personalWebService/internal/config"
	"github.com/SkylabMak/personalWebService/internal/domain/model"
	"github.com/SkylabMak/personalWebService/internal/handler"
	"github.com/SkylabMak/personalWebService/internal/infra/db"
	infraRepo "github.com/SkylabMak/personalWebService/internal/infra/repository"
	"github.com/SkylabMak/personalWebService/internal/password"
	"github.com/SkylabMak/personalWebService/internal/repository"
	"github.com/SkylabMak/personalWebService/internal/server"
	"github.com/SkylabMak/personalWebService/internal/token"
	"github.com/SkylabMak/personalWebService/internal/usecase"
	"github.com/SkylabMak/personalWebService/internal/validator"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// 期限切れセッションの掃除間隔
const reapInterval = time.Hour

func main() {
	// .envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api").Logger()

	//DB接続
	gormDB, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate")
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserRepository(gormDB)
	rtRepo := infraRepo.NewRefreshTokenRepository(gormDB)

	//argon2id。パラメータ不正は起動時に落とす
	hasher, err := password.New(
		cfg.Argon2Salt,
		cfg.Argon2MemoryCost,
		cfg.Argon2Iterations,
		cfg.Argon2Parallelism,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid argon2 configuration")
	}

	//JWT発行・検証とrefreshシークレット
	tokens := token.NewService(cfg.JWTSecret, cfg.JWTAccessExpiry)

	//Usecase生成
	authUC := usecase.NewAuthUsecase(
		userRepo,
		rtRepo,
		hasher,
		tokens,
		validator.NewAuthValidator(),
		log,
		cfg.JWTAccessExpiry,
		cfg.JWTRefreshExpiry,
	)

	//Handler生成
	authH := handler.NewAuthHandler(authUC, tokens)

	//期限切れセッション掃除（正しさには影響しない。溜まり防止のみ）
	go reapExpiredSessions(rtRepo, log)

	//Server起動
	e := server.New(authH)

	log.Info().Str("port", cfg.Port).Msg("starting server")
	if err := server.Start(e, ":"+cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func reapExpiredSessions(rtRepo repository.RefreshTokenRepository, log zerolog.Logger) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := rtRepo.DeleteExpired(ctx, time.Now())
		cancel()

		if err != nil {
			log.Error().Err(err).Msg("failed to reap expired refresh tokens")
			continue
		}
		if n > 0 {
			log.Info().Int64("deleted", n).Msg("reaped expired refresh tokens")
		}
	}
}
