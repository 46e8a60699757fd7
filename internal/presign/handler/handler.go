package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kgellert/nextjs-split-deploy/internal/lib/logger/sl"
	"github.com/kgellert/nextjs-split-deploy/internal/presign"
	"github.com/kgellert/nextjs-split-deploy/internal/transport/httpapi"
)

// maxIgnoredBody bounds how much of a PUT body is read before it is dropped.
const maxIgnoredBody = 64 << 10

type Handler struct {
	service presign.Service
	log     *slog.Logger
}

func New(service presign.Service, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

// putRequest is what some frontends send with PUT. The url is never used.
type putRequest struct {
	URL string `json:"url"`
}

func (h *Handler) CreatePresignedURL() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.presign.CreatePresignedURL"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if r.Method == http.MethodPut {
			logIgnoredBody(log, r.Body)
		}

		link, err := h.service.Issue(r.Context())
		if err != nil {
			log.Error("failed to issue presigned url", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		log.Debug("presigned url issued", slog.String("bucket", link.Bucket), slog.String("key", link.Key))

		render.JSON(w, r, link)
	}
}

func logIgnoredBody(log *slog.Logger, body io.Reader) {
	if body == nil {
		return
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxIgnoredBody))
	if err != nil || len(raw) == 0 {
		return
	}

	var req putRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Warn("ignoring undecodable request body", sl.Err(err))
		return
	}

	log.Debug("ignoring url in request body", slog.String("url", req.URL))
}
