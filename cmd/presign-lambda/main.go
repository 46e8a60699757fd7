package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/kgellert/nextjs-split-deploy/internal/presign"
	"github.com/kgellert/nextjs-split-deploy/internal/presign/handler"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))

	h := handler.NewLambda(func(ctx context.Context, region string) (presign.Presigner, error) {
		return presign.NewS3Presigner(ctx, region)
	}, log)

	lambda.Start(h.Handle)
}

func logLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
