// Package handlers contains the echo handlers of the webhook ingress.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wxpipe/wxpipe/internal/classify"
)

// maxBodyBytes caps webhook request bodies at 5MB.
const maxBodyBytes = 5 * 1024 * 1024

// Ingestor admits a webhook batch after the HTTP ack.
type Ingestor interface {
	ProcessBatch(ctx context.Context, batch classify.RawBatch)
}

// SyncHandler receives gateway webhook deliveries. The batch is acked
// immediately and processed in the background so the gateway never
// retries on slow processing.
type SyncHandler struct {
	logger    *slog.Logger
	accountID string
	ingestor  Ingestor
}

func NewSyncHandler(log *slog.Logger, accountID string, ingestor Ingestor) *SyncHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SyncHandler{
		logger:    log.With(slog.String("handler", "sync")),
		accountID: accountID,
		ingestor:  ingestor,
	}
}

func (h *SyncHandler) Register(e *echo.Echo) {
	e.POST("/msg/SyncMessage/:wxid", h.Sync)
	e.OPTIONS("/msg/SyncMessage/:wxid", h.Preflight)
}

func (h *SyncHandler) Sync(c echo.Context) error {
	if c.Param("wxid") != h.accountID {
		return c.JSON(http.StatusNotFound, map[string]any{
			"success": false,
			"message": "unknown account",
		})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		h.logger.Error("read webhook body", slog.Any("error", err))
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "unreadable body",
		})
	}
	if len(body) > maxBodyBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]any{
			"success": false,
			"message": "body too large",
		})
	}

	var batch classify.RawBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "invalid json",
		})
	}

	// Detach from the request context: processing outlives the ack.
	go h.ingestor.ProcessBatch(context.WithoutCancel(c.Request().Context()), batch)

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "received",
	})
}

func (h *SyncHandler) Preflight(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
