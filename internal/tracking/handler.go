package tracking

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Recorder receives tracking hits. The engagement service writes them
// directly; the SQS Publisher queues them for the worker.
type Recorder interface {
	RecordOpen(ctx context.Context, ev engagement.OpenEvent) error
	RecordClick(ctx context.Context, ev engagement.ClickEvent) error
	RecordUnsubscribe(ctx context.Context, ev engagement.UnsubscribeEvent) error
}

// Handler serves the public tracking endpoints. Every endpoint answers the
// recipient regardless of whether the write succeeded.
type Handler struct {
	recorder        Recorder
	landingURL      string
	confirmationURL string
	writeTimeout    time.Duration
}

// NewHandler creates a tracking handler. landingURL is the redirect target
// for clicks without a usable url; confirmationURL is where unsubscribes land.
func NewHandler(recorder Recorder, landingURL, confirmationURL string) *Handler {
	if landingURL == "" {
		landingURL = "/"
	}
	return &Handler{
		recorder:        recorder,
		landingURL:      landingURL,
		confirmationURL: confirmationURL,
		writeTimeout:    5 * time.Second,
	}
}

// Routes mounts the tracking endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

// Mount registers the tracking endpoints on an existing router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/tracking/open/{campaignId}/{recipientEmail}", h.HandleOpen)
	r.Get("/tracking/click/{campaignId}/{recipientEmail}", h.HandleClick)
	r.Get("/tracking/unsubscribe/{campaignId}/{recipientEmail}", h.HandleUnsubscribe)
	// RFC 8058 one-click unsubscribe from the List-Unsubscribe-Post header.
	r.Post("/tracking/unsubscribe/{campaignId}/{recipientEmail}", h.HandleUnsubscribe)
	r.Get("/health", h.HandleHealth)
}

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	campaignID, email := pathRecipient(r)
	email = strings.TrimSuffix(email, ".png")

	if campaignID != "" && email != "" {
		ctx, cancel := h.writeContext(r)
		err := h.recorder.RecordOpen(ctx, engagement.OpenEvent{
			CampaignID: campaignID,
			Email:      email,
			IPAddress:  realIP(r),
			UserAgent:  r.UserAgent(),
		})
		cancel()
		if err != nil {
			logger.Error("[Tracking] open write failed", "campaign_id", campaignID, "email", email, "error", err)
		}
	}
	servePixel(w)
}

func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	campaignID, email := pathRecipient(r)
	target := r.URL.Query().Get("url")
	destination := h.landingURL
	if safeRedirect(target) {
		destination = target
	}

	if campaignID != "" && email != "" {
		ctx, cancel := h.writeContext(r)
		err := h.recorder.RecordClick(ctx, engagement.ClickEvent{
			CampaignID: campaignID,
			Email:      email,
			LinkID:     r.URL.Query().Get("linkId"),
			URL:        target,
			IPAddress:  realIP(r),
			UserAgent:  r.UserAgent(),
		})
		cancel()
		if err != nil {
			logger.Error("[Tracking] click write failed", "campaign_id", campaignID, "email", email, "error", err)
		}
	}
	http.Redirect(w, r, destination, http.StatusMovedPermanently)
}

func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	campaignID, email := pathRecipient(r)

	if campaignID != "" && email != "" {
		ctx, cancel := h.writeContext(r)
		err := h.recorder.RecordUnsubscribe(ctx, engagement.UnsubscribeEvent{
			CampaignID: campaignID,
			Email:      email,
			IPAddress:  realIP(r),
			UserAgent:  r.UserAgent(),
		})
		cancel()
		if err != nil {
			logger.Error("[Tracking] unsubscribe write failed", "campaign_id", campaignID, "email", email, "error", err)
		}
	}
	http.Redirect(w, r, h.confirmationTarget(email), http.StatusFound)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// writeContext detaches the write from the client connection so a closed
// mail client does not abort it halfway.
func (h *Handler) writeContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.writeTimeout)
}

func (h *Handler) confirmationTarget(email string) string {
	u, err := url.Parse(h.confirmationURL)
	if err != nil || h.confirmationURL == "" {
		return "/"
	}
	if email != "" {
		q := u.Query()
		q.Set("email", email)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func pathRecipient(r *http.Request) (campaignID, email string) {
	return pathParam(r, "campaignId"), pathParam(r, "recipientEmail")
}

func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if dec, err := url.PathUnescape(v); err == nil {
		v = dec
	}
	return strings.TrimSpace(v)
}

// safeRedirect accepts absolute http and https URLs only.
func safeRedirect(target string) bool {
	if target == "" {
		return false
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
