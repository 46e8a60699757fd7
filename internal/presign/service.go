// Package presign mints time-limited GET links for the private environment
// document held in the asset bucket.
package presign

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/kgellert/nextjs-split-deploy/internal/envdoc"
)

const (
	FileName = envdoc.PrivateName
	Key      = envdoc.PrivateKey

	// MaxExpiry is the longest lifetime SigV4 accepts for a presigned URL.
	MaxExpiry = 7 * 24 * time.Hour
)

// ValidateExpiry rejects lifetimes the signer would either refuse or
// silently replace with its own default.
func ValidateExpiry(d time.Duration) error {
	if d <= 0 || d > MaxExpiry {
		return fmt.Errorf("%w: %s", ErrInvalidExpiry, d)
	}
	return nil
}

// Presigner is the subset of *s3.PresignClient the service needs.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Service interface {
	Issue(ctx context.Context) (Link, error)
}

// Link is the response body of /create-presigned-url.
type Link struct {
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
	PresignedURL string `json:"presignedUrl"`
	FileName     string `json:"fileName"`
}

func NewService(bucket string, expires time.Duration, presigner Presigner) Service {
	return &service{bucket: bucket, expires: expires, presigner: presigner}
}

type service struct {
	bucket    string
	expires   time.Duration
	presigner Presigner
}

// Issue presigns a fresh URL on every call; nothing is cached.
func (s *service) Issue(ctx context.Context) (Link, error) {
	const op = "presign.Issue"

	if s.bucket == "" {
		return Link{}, fmt.Errorf("%s: %w", op, ErrBucketMissing)
	}
	if err := ValidateExpiry(s.expires); err != nil {
		return Link{}, fmt.Errorf("%s: %w", op, err)
	}

	req := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(Key),
	}

	ps, err := s.presigner.PresignGetObject(ctx, req, func(po *s3.PresignOptions) {
		po.Expires = s.expires
	})
	if err != nil {
		return Link{}, fmt.Errorf("%s: presign get object: %w", op, err)
	}

	if ps == nil || ps.URL == "" {
		return Link{}, fmt.Errorf("%s: %w", op, ErrEmptyURL)
	}

	return Link{
		Bucket:       s.bucket,
		Key:          Key,
		PresignedURL: ps.URL,
		FileName:     FileName,
	}, nil
}
