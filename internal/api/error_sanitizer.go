package api

import (
	"errors"
	"net/http"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/httputil"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/report"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/campaign"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/recipient"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/sending"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/suppression"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/ses"
)

// respondError maps service errors onto HTTP statuses. Anything unknown is
// logged in full and answered with a generic 500 so store details never
// reach API consumers.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, suppression.ErrNotFound),
		errors.Is(err, recipient.ErrSegmentNotFound),
		errors.Is(err, report.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, campaign.ErrStateConflict):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, sending.ErrSendInProgress):
		httputil.ErrorCode(w, http.StatusConflict, "send_in_progress", err.Error())
	case errors.Is(err, campaign.ErrInvalidInput),
		errors.Is(err, campaign.ErrNoContent),
		errors.Is(err, campaign.ErrNoRecipients),
		errors.Is(err, suppression.ErrInvalidEmail),
		errors.Is(err, ses.ErrMalformedNotification):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, recipient.ErrResolution):
		httputil.ErrorCode(w, http.StatusBadGateway, "resolution_failed", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
