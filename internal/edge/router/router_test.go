package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/nextjs-split-deploy/internal/edge"
	"github.com/kgellert/nextjs-split-deploy/internal/edge/assets"
	"github.com/kgellert/nextjs-split-deploy/internal/presign"
	presignhandler "github.com/kgellert/nextjs-split-deploy/internal/presign/handler"
)

type stubService struct {
	calls int
}

func (s *stubService) Issue(context.Context) (presign.Link, error) {
	s.calls++
	return presign.Link{
		Bucket:       "assets",
		Key:          presign.Key,
		PresignedURL: "https://assets.s3.amazonaws.com/env/env.prod.json?sig",
		FileName:     presign.FileName,
	}, nil
}

type fixture struct {
	server   *httptest.Server
	service  *stubService
	metrics  *Metrics
	rendered int
}

func newFixture(t *testing.T, withRenderer bool) *fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "_next", "static"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "env"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_next", "static", "main.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "env", "env.prod.json"), []byte(`{"secret":true}`), 0o644))

	store := assets.NewOverlay(assets.NewDirStore(root))
	store.Put("env/env.json", "application/json", []byte(`{"downloadS3Lambda":"/create-presigned-url"}`))

	f := &fixture{service: &stubService{}}

	origins := Origins{
		Assets:  store,
		Presign: presignhandler.New(f.service, log).CreatePresignedURL(),
	}

	if withRenderer {
		renderer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.rendered++
			_, _ = io.WriteString(w, "<html>"+r.URL.Path+"</html>")
		}))
		t.Cleanup(renderer.Close)

		proxy, err := NewRendererProxy(renderer.URL, log)
		require.NoError(t, err)
		origins.Renderer = proxy
	}

	f.metrics = NewMetrics(prometheus.NewRegistry())

	rt := New(edge.DefaultTable(edge.Options{EnvViewerFunction: true}), origins, Options{
		RedirectHTTPS: true,
		Metrics:       f.metrics,
	}, log)

	f.server = httptest.NewServer(rt.Handler())
	t.Cleanup(f.server.Close)

	return f
}

func (f *fixture) do(t *testing.T, method, path string, header http.Header) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(b)
}

func TestRouter_StaticAssets(t *testing.T) {
	f := newFixture(t, true)

	resp, body := f.do(t, http.MethodGet, "/_next/static/main.js", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "console.log(1)", body)
	assert.Equal(t, 0, f.rendered)

	resp, body = f.do(t, http.MethodHead, "/_next/static/main.js", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Equal(t, "14", resp.Header.Get("Content-Length"))
	assert.NotEmpty(t, resp.Header.Get("Last-Modified"))

	resp, _ = f.do(t, http.MethodGet, "/public/missing.png", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.requests.WithLabelValues("assets", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.requests.WithLabelValues("assets", "404")))
}

func TestRouter_StaticPathsRejectWrites(t *testing.T) {
	f := newFixture(t, true)

	resp, _ := f.do(t, http.MethodPost, "/_next/static/main.js", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_EnvDocuments(t *testing.T) {
	f := newFixture(t, true)

	resp, body := f.do(t, http.MethodGet, "/env/env.json", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"downloadS3Lambda":"/create-presigned-url"}`, body)

	resp, _ = f.do(t, http.MethodGet, "/env/env.prod.json", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = f.do(t, http.MethodHead, "/env/env.json", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp, _ = f.do(t, http.MethodHead, "/env/env.prod.json", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRouter_Presign(t *testing.T) {
	f := newFixture(t, true)

	for _, method := range []string{http.MethodGet, http.MethodPut} {
		resp, body := f.do(t, method, "/create-presigned-url", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var link presign.Link
		require.NoError(t, json.Unmarshal([]byte(body), &link))
		assert.Equal(t, "env/env.prod.json", link.Key)
		assert.Equal(t, "env.prod.json", link.FileName)
	}

	assert.Equal(t, 2, f.service.calls)
}

func TestRouter_DefaultGoesToRenderer(t *testing.T) {
	f := newFixture(t, true)

	resp, body := f.do(t, http.MethodGet, "/blog/hello", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>/blog/hello</html>", body)
	assert.Equal(t, 1, f.rendered)
}

func TestRouter_NoRenderer(t *testing.T) {
	f := newFixture(t, false)

	resp, _ := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestRouter_CORSAndHTTPS(t *testing.T) {
	f := newFixture(t, true)

	resp, _ := f.do(t, http.MethodGet, "/env/env.json", http.Header{"Origin": {"https://example.com"}})
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = f.do(t, http.MethodGet, "/env/env.json", http.Header{"X-Forwarded-Proto": {"http"}})
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "https://")
}

func TestNewRendererProxy_RejectsRelativeTarget(t *testing.T) {
	_, err := NewRendererProxy("localhost:3000", slog.Default())
	assert.Error(t, err)
}
