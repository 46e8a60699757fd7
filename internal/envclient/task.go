package envclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kgellert/nextjs-split-deploy/internal/lib/logger/sl"
	"github.com/kgellert/nextjs-split-deploy/internal/presign"
)

// DownloadResult is what a finished download produced.
type DownloadResult struct {
	Link     presign.Link
	Document json.RawMessage
}

// DownloadTask fetches a signed link and then the document it points to.
// It runs in its own goroutine; callers observe it through Done and Wait and
// may stop it with Cancel.
type DownloadTask struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	once   sync.Once
	result DownloadResult
	err    error
}

func (t *DownloadTask) ID() string { return t.id }

func (t *DownloadTask) Done() <-chan struct{} { return t.done }

func (t *DownloadTask) Cancel() { t.cancel() }

// Wait blocks until the task finishes or ctx is done. A ctx expiry does not
// cancel the task.
func (t *DownloadTask) Wait(ctx context.Context) (DownloadResult, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return DownloadResult{}, ctx.Err()
	}
}

func (t *DownloadTask) finish(res DownloadResult, err error) {
	t.once.Do(func() {
		t.result = res
		t.err = err
		close(t.done)
	})
}

// StartDownload launches a download task detached from the caller's
// control flow. The task inherits ctx's values and cancellation.
func (c *Client) StartDownload(ctx context.Context) *DownloadTask {
	ctx, cancel := context.WithCancel(ctx)

	id := uuid.NewString()
	if u, err := uuid.NewV7(); err == nil {
		id = u.String()
	}

	t := &DownloadTask{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	log := c.log.With(slog.String("task_id", t.id))

	go func() {
		defer cancel()

		res, err := c.download(ctx)
		if err != nil {
			log.Error("download failed", sl.Err(err))
		} else {
			log.Debug("download finished", slog.Int("bytes", len(res.Document)))
		}
		t.finish(res, err)
	}()

	return t
}

func (c *Client) download(ctx context.Context) (DownloadResult, error) {
	const op = "envclient.download"

	link, err := c.fetchLink(ctx)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.get(ctx, link.PresignedURL)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("%s: fetch signed url: %w", op, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DownloadResult{}, &StatusError{Op: op, URL: link.Key, StatusCode: resp.StatusCode}
	}

	var doc json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return DownloadResult{}, fmt.Errorf("%s: decode %s: %w", op, link.FileName, err)
	}

	return DownloadResult{Link: link, Document: doc}, nil
}

func (c *Client) fetchLink(ctx context.Context) (presign.Link, error) {
	const op = "envclient.fetchLink"

	resp, err := c.get(ctx, c.presignURL())
	if err != nil {
		return presign.Link{}, fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return presign.Link{}, &StatusError{Op: op, URL: resp.Request.URL.String(), StatusCode: resp.StatusCode}
	}

	var link presign.Link
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return presign.Link{}, fmt.Errorf("%s: decode: %w", op, err)
	}
	if link.PresignedURL == "" {
		return presign.Link{}, fmt.Errorf("%s: %w", op, presign.ErrEmptyURL)
	}

	return link, nil
}
