package presign

import "errors"

var (
	ErrEmptyURL      = errors.New("presigner returned an empty url")
	ErrBucketMissing = errors.New("bucket is required")
	ErrInvalidExpiry = errors.New("presign expiry out of range")
)
