package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config drives the local edge emulator (cmd/devserver). The Lambda reads
// its own three variables through LoadPresign.
type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer HTTPServer `yaml:"http_server"`
	App        AppConfig  `yaml:"app"`
	Storage    Storage    `yaml:"storage"`
	Presign    Presigning `yaml:"presign"`
	Edge       Edge       `yaml:"edge"`
}

type AppConfig struct {
	// BaseURL is the public origin of the emulator; it is written into the
	// synthesized env/env.json.
	BaseURL string `yaml:"base_url" env:"APP_BASE_URL" env-default:"http://localhost:8082"`
}

type Storage struct {
	Region       string `yaml:"region" env:"S3_REGION"`
	Bucket       string `yaml:"bucket" env:"S3_BUCKET"`
	Endpoint     string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey    string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE" env-default:"true"`
}

type Presigning struct {
	ExpiresIn int `yaml:"expires_in" env:"EXPIRES_IN" env-default:"3600"`
}

type Edge struct {
	// AssetsDir serves static paths from a local build instead of the bucket.
	AssetsDir         string `yaml:"assets_dir" env:"EDGE_ASSETS_DIR"`
	RendererURL       string `yaml:"renderer_url" env:"EDGE_RENDERER_URL"`
	EnvViewerFunction bool   `yaml:"env_viewer_function" env:"EDGE_ENV_VIEWER_FUNCTION" env-default:"true"`
	SynthesizeEnv     bool   `yaml:"synthesize_env" env:"EDGE_SYNTHESIZE_ENV" env-default:"true"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8082"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config %s", err)
	}

	return &cfg
}
