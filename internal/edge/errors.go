package edge

import "errors"

var (
	ErrMethodNotAllowed     = errors.New("method not allowed for this path")
	ErrViewerRequestBlocked = errors.New("request blocked at the edge")
	ErrOriginUnavailable    = errors.New("origin unavailable")
)
