package common

import (
	"net/http"
	"strconv"
)

// CursorParams represents cursor pagination parameters
type CursorParams struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

// DefaultCursorParams returns default cursor pagination parameters
func DefaultCursorParams() CursorParams {
	return CursorParams{
		Limit: 20,
	}
}

// ExtractCursorParams extracts cursor pagination parameters from request
func ExtractCursorParams(r *http.Request) CursorParams {
	params := DefaultCursorParams()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			if l > 100 {
				l = 100 // Max page size
			}
			params.Limit = l
		}
	}

	params.Cursor = r.URL.Query().Get("cursor")

	return params
}

// BuildPaginationMeta builds cursor pagination metadata
func BuildPaginationMeta(limit int, nextCursor string) *PaginationInfo {
	return &PaginationInfo{
		Limit:      limit,
		NextCursor: nextCursor,
	}
}
