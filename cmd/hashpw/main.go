package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/SkylabMak/personalWebService/internal/config"
	"github.com/SkylabMak/personalWebService/internal/password"

	"github.com/joho/godotenv"
)

// usersテーブルをシードするためのパスワードハッシュ生成ツール。
// APIと同じARGON2_*設定で計算する
func main() {
	plain := flag.String("password", "", "password to hash")
	flag.Parse()

	if *plain == "" {
		fmt.Fprintln(os.Stderr, "usage: hashpw -password <password>")
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	hasher, err := password.New(
		cfg.Argon2Salt,
		cfg.Argon2MemoryCost,
		cfg.Argon2Iterations,
		cfg.Argon2Parallelism,
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(hasher.Hash(*plain))
}
