package httpapi

import (
	"errors"
	"net/http"

	"github.com/kgellert/nextjs-split-deploy/internal/config"
	"github.com/kgellert/nextjs-split-deploy/internal/edge"
	"github.com/kgellert/nextjs-split-deploy/internal/edge/assets"
	"github.com/kgellert/nextjs-split-deploy/internal/presign"
)

func MapError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, assets.ErrNotFound), errors.Is(err, assets.ErrInvalidKey):
		return http.StatusNotFound, "not_found", "object not found"

	case errors.Is(err, edge.ErrMethodNotAllowed):
		return http.StatusForbidden, "method_not_allowed", err.Error()

	case errors.Is(err, edge.ErrViewerRequestBlocked):
		return http.StatusForbidden, "forbidden", err.Error()

	case errors.Is(err, edge.ErrOriginUnavailable):
		return http.StatusBadGateway, "origin_unavailable", err.Error()

	case errors.Is(err, config.ErrInvalidEnvironment), errors.Is(err, presign.ErrBucketMissing),
		errors.Is(err, presign.ErrInvalidExpiry):
		return http.StatusInternalServerError, "invalid_configuration", "invalid environment values"

	case errors.Is(err, presign.ErrEmptyURL):
		return http.StatusBadGateway, "presign_failed", err.Error()
	}

	return http.StatusInternalServerError, "internal_error", "internal server error"
}
