package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/kgellert/nextjs-split-deploy/internal/presign"
)

// MaxPresignExpiry is the longest lifetime SigV4 accepts for a presigned URL.
const MaxPresignExpiry = presign.MaxExpiry

var ErrInvalidEnvironment = errors.New("invalid environment values")

// Presign is the validated environment of the link-issuance function.
type Presign struct {
	Region  string
	Bucket  string
	Expires time.Duration
}

type presignEnv struct {
	Region    string `env:"REGION"`
	Bucket    string `env:"BUCKET"`
	ExpiresIn string `env:"EXPIRES_IN"`
}

// LoadPresign reads REGION, BUCKET and EXPIRES_IN from the process
// environment. It is called on every invocation.
func LoadPresign() (Presign, error) {
	const op = "config.LoadPresign"

	var raw presignEnv
	if err := cleanenv.ReadEnv(&raw); err != nil {
		return Presign{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidEnvironment, err)
	}

	cfg, err := raw.validate()
	if err != nil {
		return Presign{}, fmt.Errorf("%s: %w", op, err)
	}

	return cfg, nil
}

func (e presignEnv) validate() (Presign, error) {
	var missing []string
	if e.Region == "" {
		missing = append(missing, "REGION")
	}
	if e.Bucket == "" {
		missing = append(missing, "BUCKET")
	}
	if e.ExpiresIn == "" {
		missing = append(missing, "EXPIRES_IN")
	}
	if len(missing) > 0 {
		return Presign{}, fmt.Errorf("%w: missing %s", ErrInvalidEnvironment, strings.Join(missing, ", "))
	}

	secs, err := strconv.Atoi(strings.TrimSpace(e.ExpiresIn))
	if err != nil {
		return Presign{}, fmt.Errorf("%w: EXPIRES_IN is not numeric: %q", ErrInvalidEnvironment, e.ExpiresIn)
	}

	expires := time.Duration(secs) * time.Second
	if err := presign.ValidateExpiry(expires); err != nil {
		return Presign{}, fmt.Errorf("%w: EXPIRES_IN: %w", ErrInvalidEnvironment, err)
	}

	return Presign{
		Region:  e.Region,
		Bucket:  e.Bucket,
		Expires: expires,
	}, nil
}
