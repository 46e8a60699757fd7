package presign

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Presigner builds a presign client for region from the default
// credential chain (the function's execution role inside Lambda).
func NewS3Presigner(ctx context.Context, region string) (*s3.PresignClient, error) {
	const op = "presign.NewS3Presigner"

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("%s: load aws config: %w", op, err)
	}

	return s3.NewPresignClient(s3.NewFromConfig(awsCfg)), nil
}
