package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads straight from the asset bucket.
type S3Store struct {
	client GetObjectAPI
	bucket string
}

func NewS3Store(client GetObjectAPI, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	const op = "assets.S3Store.Get"

	key, err := KeyFromPath(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %s: %w", op, key, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: s3 get object: %w", op, err)
	}

	ct := aws.ToString(obj.ContentType)
	if ct == "" {
		ct = contentTypeFor(key)
	}

	return &Object{
		Body:          obj.Body,
		ContentType:   ct,
		ContentLength: aws.ToInt64(obj.ContentLength),
		ETag:          aws.ToString(obj.ETag),
		LastModified:  aws.ToTime(obj.LastModified),
	}, nil
}
