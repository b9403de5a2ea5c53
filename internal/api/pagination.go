package api

import (
	"net/http"
	"net/url"
	"strconv"
)

// pageWindow is the slice of a list a request asks for. Clients send either
// page or offset; offset wins when both are given.
type pageWindow struct {
	Page   int
	Limit  int
	Offset int
}

// parsePageWindow reads page, offset and limit. limit falls back to
// defaultLimit and is capped at maxLimit.
func parsePageWindow(r *http.Request, defaultLimit, maxLimit int) pageWindow {
	q := r.URL.Query()
	limit := positiveParam(q, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}
	if raw := q.Get("offset"); raw != "" {
		if off, err := strconv.Atoi(raw); err == nil && off >= 0 {
			return pageWindow{Page: off/limit + 1, Limit: limit, Offset: off}
		}
	}
	page := positiveParam(q, "page", 1)
	return pageWindow{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

func positiveParam(q url.Values, key string, def int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

type listMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// listResponse is the envelope of every paged list endpoint. Data is never
// null so clients can range over it unconditionally.
type listResponse[T any] struct {
	Data       []T      `json:"data"`
	Pagination listMeta `json:"pagination"`
}

func newListResponse[T any](items []T, w pageWindow, total int) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	pages := (total + w.Limit - 1) / w.Limit
	if pages < 1 {
		pages = 1
	}
	return listResponse[T]{
		Data: items,
		Pagination: listMeta{
			Page:       w.Page,
			Limit:      w.Limit,
			Offset:     w.Offset,
			Total:      total,
			TotalPages: pages,
			HasMore:    w.Offset+w.Limit < total,
		},
	}
}
