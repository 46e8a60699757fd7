package main

import (
	"context"
	"errors"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appConfig "github.com/kgellert/nextjs-split-deploy/internal/config"
	"github.com/kgellert/nextjs-split-deploy/internal/edge"
	"github.com/kgellert/nextjs-split-deploy/internal/edge/assets"
	"github.com/kgellert/nextjs-split-deploy/internal/edge/router"
	"github.com/kgellert/nextjs-split-deploy/internal/envdoc"
	"github.com/kgellert/nextjs-split-deploy/internal/lib/logger/handlers/slogpretty"
	"github.com/kgellert/nextjs-split-deploy/internal/lib/logger/sl"
	"github.com/kgellert/nextjs-split-deploy/internal/presign"
	presignHandler "github.com/kgellert/nextjs-split-deploy/internal/presign/handler"
)

const (
	envLocal = "local"
	envDev   = "dev"

	metricsPath = "/_edge/metrics"
)

func main() {
	if err := godotenv.Load(); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := appConfig.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting edge emulator", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s3Client, err := newS3Client(ctx, cfg.Storage)
	if err != nil {
		log.Error("failed to load aws config", sl.Err(err))
		os.Exit(1)
	}

	expires := time.Duration(cfg.Presign.ExpiresIn) * time.Second
	if err := presign.ValidateExpiry(expires); err != nil {
		log.Error("invalid presign.expires_in", slog.Int("expires_in", cfg.Presign.ExpiresIn), sl.Err(err))
		os.Exit(1)
	}

	presigner := s3.NewPresignClient(s3Client)
	presignService := presign.NewService(cfg.Storage.Bucket, expires, presigner)

	store := newAssetStore(cfg, s3Client, log)

	origins := router.Origins{
		Assets:  store,
		Presign: presignHandler.New(presignService, log).CreatePresignedURL(),
	}

	if cfg.Edge.RendererURL != "" {
		proxy, err := router.NewRendererProxy(cfg.Edge.RendererURL, log)
		if err != nil {
			log.Error("invalid renderer url", sl.Err(err))
			os.Exit(1)
		}
		origins.Renderer = proxy
	} else {
		log.Warn("no renderer configured, dynamic paths will answer 502")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	table := edge.DefaultTable(edge.Options{EnvViewerFunction: cfg.Edge.EnvViewerFunction})
	rt := router.New(table, origins, router.Options{
		RedirectHTTPS: true,
		Metrics:       router.NewMetrics(reg),
	}, log)

	mux := chi.NewRouter()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Mount("/", rt.Handler())

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop server", sl.Err(err))
		}
	}()

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("failed to start server", sl.Err(err))
		os.Exit(1)
	}

	log.Info("server stopped")
}

func newS3Client(ctx context.Context, st appConfig.Storage) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(st.Region),
	}
	if st.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(st.AccessKey, st.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if st.Endpoint != "" {
			o.BaseEndpoint = aws.String(st.Endpoint)
		}
		o.UsePathStyle = st.UsePathStyle
	}), nil
}

// newAssetStore picks the local build or the bucket, and optionally layers
// a synthesized env/env.json pointing back at this server.
func newAssetStore(cfg *appConfig.Config, client *s3.Client, log *slog.Logger) assets.Store {
	var base assets.Store
	if cfg.Edge.AssetsDir != "" {
		log.Info("serving static paths from disk", slog.String("dir", cfg.Edge.AssetsDir))
		base = assets.NewDirStore(cfg.Edge.AssetsDir)
	} else {
		log.Info("serving static paths from bucket", slog.String("bucket", cfg.Storage.Bucket))
		base = assets.NewS3Store(client, cfg.Storage.Bucket)
	}

	if !cfg.Edge.SynthesizeEnv {
		return base
	}

	baseURL := strings.TrimSuffix(cfg.App.BaseURL, "/")
	doc, err := envdoc.Descriptor{
		CloudfrontURL:    baseURL,
		DownloadS3Lambda: baseURL + edge.PresignPath,
	}.Marshal()
	if err != nil {
		log.Error("failed to synthesize env descriptor", sl.Err(err))
		return base
	}

	overlay := assets.NewOverlay(base)
	overlay.Put(envdoc.PublicKey, "application/json", doc)

	return overlay
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
