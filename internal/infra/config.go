package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/kgellert/nextjs-split-deploy/internal/presign"
)

// StackEnv is read from the environment of `cdk synth` / `cdk deploy`.
// Paths are relative to the repository root.
type StackEnv struct {
	StaticAssetsDir   string `env:"FRONTEND_STATIC_DIR" envDefault:"./frontend/.next/static"`
	PublicAssetsDir   string `env:"FRONTEND_PUBLIC_DIR" envDefault:"./frontend/public"`
	RendererImageDir  string `env:"FRONTEND_IMAGE_DIR" envDefault:"./frontend"`
	PresignEntry      string `env:"PRESIGN_ENTRY" envDefault:"./cmd/presign-lambda"`
	PresignExpiresIn  int    `env:"PRESIGN_EXPIRES_IN" envDefault:"3600"`
	EnvViewerFunction bool   `env:"ENV_VIEWER_FUNCTION" envDefault:"true"`
	PrivateEnvFile    string `env:"PRIVATE_ENV_FILE"`
}

func LoadStackEnv() (StackEnv, error) {
	var cfg StackEnv
	if err := env.Parse(&cfg); err != nil {
		return StackEnv{}, fmt.Errorf("infra.LoadStackEnv: %w", err)
	}
	// The function rejects the same range at invocation time.
	if err := presign.ValidateExpiry(time.Duration(cfg.PresignExpiresIn) * time.Second); err != nil {
		return StackEnv{}, fmt.Errorf("infra.LoadStackEnv: PRESIGN_EXPIRES_IN: %w", err)
	}
	return cfg, nil
}
