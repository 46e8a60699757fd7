package envclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/nextjs-split-deploy/internal/envdoc"
)

type edgeStub struct {
	server *httptest.Server

	envStatus     int
	envBody       string
	envBlock      chan struct{}
	presignStatus int
	signedStatus  int
	signedBody    string
	block         chan struct{}

	envCalls     atomic.Int32
	presignCalls atomic.Int32
	signedCalls  atomic.Int32
}

func newEdgeStub(t *testing.T) *edgeStub {
	t.Helper()

	s := &edgeStub{
		envStatus:     http.StatusOK,
		presignStatus: http.StatusOK,
		signedStatus:  http.StatusOK,
		signedBody:    `{"bucketName":"real-env"}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/env/env.json", func(w http.ResponseWriter, r *http.Request) {
		s.envCalls.Add(1)
		if s.envBlock != nil {
			select {
			case <-s.envBlock:
			case <-r.Context().Done():
				return
			}
		}
		if s.envStatus != http.StatusOK {
			w.WriteHeader(s.envStatus)
			return
		}
		if s.envBody != "" {
			_, _ = io.WriteString(w, s.envBody)
			return
		}
		_, _ = io.WriteString(w, `{"cloudfrontUrl":"`+s.server.URL+`","downloadS3Lambda":"https://fn.lambda-url.on.aws/"}`)
	})
	mux.HandleFunc("/create-presigned-url", func(w http.ResponseWriter, r *http.Request) {
		s.presignCalls.Add(1)
		if s.block != nil {
			<-s.block
		}
		if s.presignStatus != http.StatusOK {
			w.WriteHeader(s.presignStatus)
			return
		}
		_, _ = io.WriteString(w, `{"bucket":"assets","key":"env/env.prod.json","presignedUrl":"`+s.server.URL+`/signed/env.prod.json?X-Amz-Signature=x","fileName":"env.prod.json"}`)
	})
	mux.HandleFunc("/signed/env.prod.json", func(w http.ResponseWriter, r *http.Request) {
		s.signedCalls.Add(1)
		w.WriteHeader(s.signedStatus)
		_, _ = io.WriteString(w, s.signedBody)
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)

	return s
}

func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	c, err := New(base, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c
}

func waitTask(t *testing.T, task *DownloadTask) (DownloadResult, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return task.Wait(ctx)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("/env")
	assert.ErrorIs(t, err, ErrInvalidBaseURL)
}

func TestDescriptor_FetchedOnce(t *testing.T) {
	edge := newEdgeStub(t)
	c := newTestClient(t, edge.server.URL)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env, found, err := c.Descriptor(context.Background())
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, edge.server.URL, env.CloudfrontURL)
		}()
	}
	wg.Wait()

	_, _, err := c.Descriptor(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), edge.envCalls.Load())
}

func TestDescriptor_SharedFetchOutlivesCancelledCaller(t *testing.T) {
	edge := newEdgeStub(t)
	edge.envBlock = make(chan struct{})
	c := newTestClient(t, edge.server.URL)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.Descriptor(firstCtx)
		firstErr <- err
	}()

	require.Eventually(t, func() bool { return edge.envCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	type result struct {
		env   envdoc.Descriptor
		found bool
		err   error
	}
	second := make(chan result, 1)
	go func() {
		env, found, err := c.Descriptor(context.Background())
		second <- result{env, found, err}
	}()

	// give the second caller time to join the in-flight request
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(edge.envBlock)

	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.True(t, r.found)
		assert.Equal(t, edge.server.URL, r.env.CloudfrontURL)
	case <-time.After(5 * time.Second):
		t.Fatal("second caller did not return")
	}

	assert.Equal(t, int32(1), edge.envCalls.Load())
}

func TestDescriptor_WithoutDownloadEndpointIsLogged(t *testing.T) {
	edge := newEdgeStub(t)
	edge.envBody = `{"cloudfrontUrl":"https://d111.cloudfront.net"}`

	var buf bytes.Buffer
	c, err := New(edge.server.URL, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)

	env, found, err := c.Descriptor(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.ErrorIs(t, env.Validate(), envdoc.ErrMissingDownloadEndpoint)

	assert.Contains(t, buf.String(), "environment descriptor is incomplete")
	assert.Contains(t, buf.String(), envdoc.ErrMissingDownloadEndpoint.Error())
}

func TestDescriptor_Missing(t *testing.T) {
	edge := newEdgeStub(t)
	edge.envStatus = http.StatusNotFound
	c := newTestClient(t, edge.server.URL)

	env, found, err := c.Descriptor(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, envdoc.Placeholder(), env)
}

func TestDescriptor_UpstreamError(t *testing.T) {
	edge := newEdgeStub(t)
	edge.envStatus = http.StatusInternalServerError
	c := newTestClient(t, edge.server.URL)

	env, found, err := c.Descriptor(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.False(t, found)
	assert.True(t, env.IsPlaceholder())

	// failures are not cached
	edge.envStatus = http.StatusOK
	_, found, err = c.Descriptor(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMount_WithoutDescriptorMakesNoFurtherCalls(t *testing.T) {
	edge := newEdgeStub(t)
	edge.envStatus = http.StatusNotFound
	c := newTestClient(t, edge.server.URL)

	s, err := c.Mount(context.Background())
	require.NoError(t, err)

	assert.False(t, s.Found)
	assert.Nil(t, s.Download)
	assert.Equal(t, "not found", s.Env.BucketName)
	assert.Equal(t, int32(0), edge.presignCalls.Load())
	assert.Equal(t, int32(0), edge.signedCalls.Load())
}

func TestMount_StartsOneDownload(t *testing.T) {
	edge := newEdgeStub(t)
	edge.block = make(chan struct{})
	c := newTestClient(t, edge.server.URL)

	s, err := c.Mount(context.Background())
	require.NoError(t, err)
	require.True(t, s.Found)
	require.NotNil(t, s.Download)

	// Mount returned while the presign request is still held open.
	select {
	case <-s.Download.Done():
		t.Fatal("download finished before the presign endpoint answered")
	default:
	}

	close(edge.block)

	res, err := waitTask(t, s.Download)
	require.NoError(t, err)

	assert.Equal(t, "env/env.prod.json", res.Link.Key)
	assert.JSONEq(t, `{"bucketName":"real-env"}`, string(res.Document))
	assert.Equal(t, int32(1), edge.presignCalls.Load())
	assert.Equal(t, int32(1), edge.signedCalls.Load())
	assert.NotEmpty(t, s.Download.ID())
}

func TestDownload_Errors(t *testing.T) {
	t.Run("presign endpoint fails", func(t *testing.T) {
		edge := newEdgeStub(t)
		edge.presignStatus = http.StatusBadGateway
		c := newTestClient(t, edge.server.URL)

		_, err := waitTask(t, c.StartDownload(context.Background()))
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadGateway, se.StatusCode)
		assert.Equal(t, int32(0), edge.signedCalls.Load())
	})

	t.Run("signed url rejected", func(t *testing.T) {
		edge := newEdgeStub(t)
		edge.signedStatus = http.StatusForbidden
		c := newTestClient(t, edge.server.URL)

		_, err := waitTask(t, c.StartDownload(context.Background()))
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusForbidden, se.StatusCode)
	})

	t.Run("malformed document", func(t *testing.T) {
		edge := newEdgeStub(t)
		edge.signedBody = `{"bucketName":`
		c := newTestClient(t, edge.server.URL)

		_, err := waitTask(t, c.StartDownload(context.Background()))
		assert.Error(t, err)
	})
}

func TestDownload_Cancel(t *testing.T) {
	edge := newEdgeStub(t)
	edge.block = make(chan struct{})
	t.Cleanup(func() { close(edge.block) })
	c := newTestClient(t, edge.server.URL)

	task := c.StartDownload(context.Background())
	task.Cancel()

	_, err := waitTask(t, task)
	assert.True(t, errors.Is(err, context.Canceled), err)
}
