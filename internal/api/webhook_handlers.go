package api

import (
	"io"
	"net/http"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/httputil"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

const maxWebhookBody = 1 << 20

// HandleSESWebhook receives SNS deliveries of SES bounce and complaint
// notifications.
//
//	POST /api/webhooks/ses
func (h *Handlers) HandleSESWebhook(w http.ResponseWriter, r *http.Request) {
	if h.Feedback == nil {
		httputil.ErrorCode(w, http.StatusNotImplemented, "not_configured", "SES feedback is not configured")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.BadRequest(w, "unreadable body")
		return
	}
	result, err := h.Feedback.Process(r.Context(), body)
	if err != nil {
		// Partial results are still reported; SNS retries on non-2xx.
		logger.Warn("[API] SES feedback failed", "error", err)
		respondError(w, err)
		return
	}
	httputil.OK(w, result)
}
