package tracking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/service/engagement"
)

type fakeRecorder struct {
	mu     sync.Mutex
	opens  []engagement.OpenEvent
	clicks []engagement.ClickEvent
	unsubs []engagement.UnsubscribeEvent
	err    error
}

func (f *fakeRecorder) RecordOpen(_ context.Context, ev engagement.OpenEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, ev)
	return f.err
}

func (f *fakeRecorder) RecordClick(_ context.Context, ev engagement.ClickEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, ev)
	return f.err
}

func (f *fakeRecorder) RecordUnsubscribe(_ context.Context, ev engagement.UnsubscribeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, ev)
	return f.err
}

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone)")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleOpen_ServesPixelAndRecords(t *testing.T) {
	rf := &fakeRecorder{}
	h := NewHandler(rf, "https://example.com", "https://example.com/unsubscribed")

	rec := serve(h, "/tracking/open/c1/a@x.com.png")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
	assert.Equal(t, pixelGIF, rec.Body.Bytes())
	require.Len(t, rf.opens, 1)
	assert.Equal(t, "c1", rf.opens[0].CampaignID)
	assert.Equal(t, "a@x.com", rf.opens[0].Email)
	assert.Equal(t, "203.0.113.7", rf.opens[0].IPAddress)
}

func TestHandleOpen_WriteFailureStillServesPixel(t *testing.T) {
	rf := &fakeRecorder{err: errors.New("db down")}
	rec := serve(NewHandler(rf, "", ""), "/tracking/open/c1/a%40x.com.png")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pixelGIF, rec.Body.Bytes())
	require.Len(t, rf.opens, 1)
	assert.Equal(t, "a@x.com", rf.opens[0].Email)
}

func TestHandleClick_Redirects(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"http url", "https://example.com/p?q=1", "https://example.com/p?q=1"},
		{"missing url", "", "https://landing.example.com"},
		{"javascript scheme", "javascript:alert(1)", "https://landing.example.com"},
		{"relative url", "/internal", "https://landing.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf := &fakeRecorder{}
			h := NewHandler(rf, "https://landing.example.com", "")
			path := "/tracking/click/c1/a@x.com?linkId=abc&url=" + url.QueryEscape(tt.target)

			rec := serve(h, path)

			assert.Equal(t, http.StatusMovedPermanently, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Location"))
			require.Len(t, rf.clicks, 1)
			assert.Equal(t, "abc", rf.clicks[0].LinkID)
		})
	}
}

func TestHandleClick_WriteFailureStillRedirects(t *testing.T) {
	rf := &fakeRecorder{err: errors.New("boom")}
	rec := serve(NewHandler(rf, "", ""), "/tracking/click/c1/a@x.com?url="+url.QueryEscape("https://example.com"))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))
}

func TestHandleUnsubscribe_RedirectsToConfirmation(t *testing.T) {
	rf := &fakeRecorder{err: errors.New("partial")}
	h := NewHandler(rf, "", "https://example.com/unsubscribed")

	rec := serve(h, "/tracking/unsubscribe/c1/a@x.com")

	assert.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/unsubscribed", loc.Path)
	assert.Equal(t, "a@x.com", loc.Query().Get("email"))
	require.Len(t, rf.unsubs, 1)
}

func TestHandleHealth(t *testing.T) {
	rec := serve(NewHandler(&fakeRecorder{}, "", ""), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
