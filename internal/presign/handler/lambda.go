package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/kgellert/nextjs-split-deploy/internal/config"
	"github.com/kgellert/nextjs-split-deploy/internal/lib/logger/sl"
	"github.com/kgellert/nextjs-split-deploy/internal/presign"
)

// ClientFactory builds the presign client for one invocation.
type ClientFactory func(ctx context.Context, region string) (presign.Presigner, error)

// Lambda serves /create-presigned-url behind a Lambda Function URL.
type Lambda struct {
	newClient  ClientFactory
	loadConfig func() (config.Presign, error)
	log        *slog.Logger
}

func NewLambda(newClient ClientFactory, log *slog.Logger) *Lambda {
	return &Lambda{
		newClient:  newClient,
		loadConfig: config.LoadPresign,
		log:        log,
	}
}

// Handle returns an error for configuration and presign failures so the
// platform reports them as a 5xx; the client is only built once the
// environment has been validated.
func (l *Lambda) Handle(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	const op = "handlers.presign.Lambda.Handle"

	log := l.log.With(
		slog.String("op", op),
		slog.String("request_id", req.RequestContext.RequestID),
	)

	log.Debug("invocation received",
		slog.String("method", req.RequestContext.HTTP.Method),
		slog.String("path", req.RawPath),
	)

	cfg, err := l.loadConfig()
	if err != nil {
		log.Error("invalid configuration", sl.Err(err))
		return events.LambdaFunctionURLResponse{}, err
	}

	if strings.EqualFold(req.RequestContext.HTTP.Method, http.MethodPut) && req.Body != "" {
		logIgnoredBody(log, strings.NewReader(decodeBody(req)))
	}

	client, err := l.newClient(ctx, cfg.Region)
	if err != nil {
		log.Error("failed to build presign client", sl.Err(err))
		return events.LambdaFunctionURLResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	link, err := presign.NewService(cfg.Bucket, cfg.Expires, client).Issue(ctx)
	if err != nil {
		log.Error("failed to issue presigned url", sl.Err(err))
		return events.LambdaFunctionURLResponse{}, err
	}

	body, err := json.Marshal(link)
	if err != nil {
		return events.LambdaFunctionURLResponse{}, fmt.Errorf("%s: marshal: %w", op, err)
	}

	log.Info("presigned url issued",
		slog.String("bucket", link.Bucket),
		slog.String("key", link.Key),
		slog.Duration("expires", cfg.Expires),
	)

	return events.LambdaFunctionURLResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}

func decodeBody(req events.LambdaFunctionURLRequest) string {
	if !req.IsBase64Encoded {
		return req.Body
	}
	raw, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return ""
	}
	return string(raw)
}
