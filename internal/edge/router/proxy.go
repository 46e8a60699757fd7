package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/kgellert/nextjs-split-deploy/internal/edge"
	"github.com/kgellert/nextjs-split-deploy/internal/lib/logger/sl"
	"github.com/kgellert/nextjs-split-deploy/internal/transport/httpapi"
)

// NewRendererProxy forwards to the rendering server. Like the CDN origin
// request policy it forwards every viewer header except Host.
func NewRendererProxy(target string, log *slog.Logger) (http.Handler, error) {
	const op = "edge.router.NewRendererProxy"

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%s: parse target: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: target must be absolute: %q", op, target)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error("renderer unreachable", slog.String("target", target), sl.Err(err))
			httpapi.WriteError(w, r, fmt.Errorf("%s: %w", op, edge.ErrOriginUnavailable))
		},
	}, nil
}
