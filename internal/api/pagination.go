package api

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// PaginationParams holds parsed pagination query parameters.
type PaginationParams struct {
	Page    int
	PerPage int
}

// ParsePagination reads page and per_page from the query string.
// Invalid values fall back to page 1 and 50 items; per_page is capped at 200.
func ParsePagination(r *http.Request) PaginationParams {
	p := PaginationParams{Page: 1, PerPage: defaultPerPage}
	q := r.URL.Query()

	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("per_page")); err == nil && n > 0 {
		p.PerPage = min(n, maxPerPage)
	}
	return p
}

// Offset returns the database offset for the current page.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Meta builds the pagination block of a list response.
func (p PaginationParams) Meta(total int64) PaginationMeta {
	pages := 0
	if p.PerPage > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return PaginationMeta{Page: p.Page, PerPage: p.PerPage, Total: total, TotalPages: pages}
}
