package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skwf/portal/apiclient"
)

func TestParseListOptions(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, defaultPageLimit},
		{"custom limit", "limit=50", 1, 50},
		{"custom page", "page=3", 3, defaultPageLimit},
		{"both", "limit=25&page=2", 2, 25},
		{"limit exceeds max", "limit=500", 1, maxPageLimit},
		{"negative limit uses default", "limit=-1", 1, defaultPageLimit},
		{"negative page uses first", "page=-5", 1, defaultPageLimit},
		{"zero page uses first", "page=0", 1, defaultPageLimit},
		{"non-numeric limit", "limit=abc", 1, defaultPageLimit},
		{"non-numeric page", "page=xyz", 1, defaultPageLimit},
		{"zero limit uses default", "limit=0", 1, defaultPageLimit},
		{"limit one", "limit=1", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/test"
			if tt.query != "" {
				url += "?" + tt.query
			}
			r := httptest.NewRequest("GET", url, nil)
			opts := parseListOptions(r)
			assert.Equal(t, tt.wantPage, opts.Page, "page")
			assert.Equal(t, tt.wantLimit, opts.Limit, "limit")
		})
	}
}

func TestParseListOptions_Filters(t *testing.T) {
	r := httptest.NewRequest("GET", "/test?search=ali&status=pending", nil)
	opts := parseListOptions(r)
	assert.Equal(t, "ali", opts.Search)
	assert.Equal(t, "pending", opts.Status)
}

func TestPageMeta(t *testing.T) {
	tests := []struct {
		name     string
		page     apiclient.Page[int]
		opts     apiclient.ListOptions
		wantPage int
		wantMore bool
	}{
		{
			name:     "first of several",
			page:     apiclient.Page[int]{TotalPages: 5, TotalRecords: 50, CurrentPage: 1},
			opts:     apiclient.ListOptions{Page: 1, Limit: 10},
			wantPage: 1, wantMore: true,
		},
		{
			name:     "last page",
			page:     apiclient.Page[int]{TotalPages: 3, TotalRecords: 25, CurrentPage: 3},
			opts:     apiclient.ListOptions{Page: 3, Limit: 10},
			wantPage: 3, wantMore: false,
		},
		{
			name:     "current page omitted",
			page:     apiclient.Page[int]{TotalPages: 4, TotalRecords: 40},
			opts:     apiclient.ListOptions{Page: 2, Limit: 10},
			wantPage: 2, wantMore: true,
		},
		{
			name:     "empty collection",
			page:     apiclient.Page[int]{},
			opts:     apiclient.ListOptions{Page: 1, Limit: 10},
			wantPage: 1, wantMore: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := pageMeta(&tt.page, tt.opts)
			assert.Equal(t, tt.wantPage, meta.CurrentPage, "current_page")
			assert.Equal(t, tt.wantMore, meta.HasMore, "has_more")
			assert.Equal(t, tt.page.TotalRecords, meta.TotalCount, "total_count")
			assert.Equal(t, tt.page.TotalPages, meta.TotalPages, "total_pages")
			assert.Equal(t, tt.opts.Limit, meta.Limit, "limit")
		})
	}
}
