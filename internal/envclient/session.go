package envclient

import (
	"context"

	"github.com/kgellert/nextjs-split-deploy/internal/envdoc"
)

// Session is what a mounted consumer sees: the descriptor (or placeholder)
// and, when a descriptor exists, the single download started for it.
type Session struct {
	Env      envdoc.Descriptor
	Found    bool
	Download *DownloadTask
}

// Mount loads the descriptor and starts exactly one download when it is
// present. It never waits for the download.
func (c *Client) Mount(ctx context.Context) (*Session, error) {
	env, found, err := c.Descriptor(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{Env: env, Found: found}
	if found {
		s.Download = c.StartDownload(ctx)
	}

	return s, nil
}
