// Package router applies an edge.Table to local HTTP traffic so the split
// deployment can be exercised without a CDN in front of it.
package router

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kgellert/nextjs-split-deploy/internal/edge"
	"github.com/kgellert/nextjs-split-deploy/internal/edge/assets"
	mwLogger "github.com/kgellert/nextjs-split-deploy/internal/http-server/middleware/logger"
	"github.com/kgellert/nextjs-split-deploy/internal/lib/logger/sl"
	"github.com/kgellert/nextjs-split-deploy/internal/transport/httpapi"
)

// Origins are the backends a rule can point at. A nil Renderer or Presign
// answers 502.
type Origins struct {
	Assets   assets.Store
	Presign  http.Handler
	Renderer http.Handler
}

type Options struct {
	// RedirectHTTPS answers plain-HTTP requests (per X-Forwarded-Proto)
	// with a redirect to https.
	RedirectHTTPS bool
	Metrics       *Metrics
}

type Router struct {
	table   edge.Table
	origins Origins
	opts    Options
	log     *slog.Logger
}

func New(table edge.Table, origins Origins, opts Options, log *slog.Logger) *Router {
	return &Router{
		table:   table,
		origins: origins,
		opts:    opts,
		log:     log,
	}
}

// Handler returns the chi router with the edge middleware stack in front of
// the dispatcher.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mwLogger.New(rt.log))
	r.Use(middleware.Recoverer)
	if rt.opts.RedirectHTTPS {
		r.Use(redirectHTTPS)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: edge.MethodsAll,
		AllowedHeaders: []string{"*"},
	}))

	r.Handle("/*", rt)

	return r
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "edge.router.ServeHTTP"

	rule := rt.table.Match(r.URL.Path)

	log := rt.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("origin", string(rule.Origin)),
	)

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	defer func() {
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.observe(rule.Origin, ww.Status())
		}
	}()

	if !rule.Allows(r.Method) {
		log.Debug("method rejected", slog.String("method", r.Method))
		httpapi.WriteError(ww, r, edge.ErrMethodNotAllowed)
		return
	}

	if rule.ViewerRequest && edge.ViewerRequestBlocked(r.URL.Path) {
		log.Info("viewer request blocked", slog.String("path", r.URL.Path))
		httpapi.WriteError(ww, r, edge.ErrViewerRequestBlocked)
		return
	}

	switch rule.Origin {
	case edge.OriginAssets:
		rt.serveAsset(ww, r, log)
	case edge.OriginPresign:
		serveOrigin(ww, r, rt.origins.Presign)
	default:
		serveOrigin(ww, r, rt.origins.Renderer)
	}
}

func serveOrigin(w http.ResponseWriter, r *http.Request, h http.Handler) {
	if h == nil {
		httpapi.WriteError(w, r, edge.ErrOriginUnavailable)
		return
	}
	h.ServeHTTP(w, r)
}

func (rt *Router) serveAsset(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	if rt.origins.Assets == nil {
		httpapi.WriteError(w, r, edge.ErrOriginUnavailable)
		return
	}

	obj, err := rt.origins.Assets.Get(r.Context(), r.URL.Path)
	if err != nil {
		log.Debug("asset lookup failed", slog.String("path", r.URL.Path), sl.Err(err))
		httpapi.WriteError(w, r, err)
		return
	}
	defer obj.Body.Close()

	h := w.Header()
	h.Set("Content-Type", obj.ContentType)
	if obj.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.ContentLength, 10))
	}
	if obj.ETag != "" {
		h.Set("ETag", obj.ETag)
	}
	if !obj.LastModified.IsZero() {
		h.Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}

	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := io.Copy(w, obj.Body); err != nil {
		log.Warn("asset copy interrupted", sl.Err(err))
	}
}

func redirectHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") == "http" {
			target := "https://" + r.Host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusMovedPermanently)
			return
		}
		next.ServeHTTP(w, r)
	})
}
