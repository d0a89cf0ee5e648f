package api

import (
	"net/http"
	"strconv"

	"github.com/skwf/portal/apiclient"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// PaginationMeta is embedded in paginated list responses.
type PaginationMeta struct {
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	CurrentPage int  `json:"current_page"`
	Limit       int  `json:"limit"`
	HasMore     bool `json:"has_more"`
}

// parseListOptions reads "page", "limit", "search" and "status" query
// parameters. Missing or invalid values fall back to defaults (page=1,
// limit=defaultPageLimit); limit is capped at maxPageLimit.
func parseListOptions(r *http.Request) apiclient.ListOptions {
	q := r.URL.Query()

	opts := apiclient.ListOptions{Page: 1, Limit: defaultPageLimit}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if opts.Limit > maxPageLimit {
		opts.Limit = maxPageLimit
	}
	opts.Search = q.Get("search")
	opts.Status = q.Get("status")
	return opts
}

// pageMeta fills PaginationMeta from a remote page. The remote API may omit
// the current page; the requested one is used then.
func pageMeta[T any](p *apiclient.Page[T], opts apiclient.ListOptions) PaginationMeta {
	current := p.CurrentPage
	if current == 0 {
		current = opts.Page
	}
	return PaginationMeta{
		TotalCount:  p.TotalRecords,
		TotalPages:  p.TotalPages,
		CurrentPage: current,
		Limit:       opts.Limit,
		HasMore:     current < p.TotalPages,
	}
}
