package common

import (
	"net/http"
	"strconv"
)

// Admin listings (orders, audit trail, staff) page through "page" and
// "limit" query parameters. The limit is capped so a single request cannot
// drag an unbounded result set out of Postgres.
const maxPerPage = 100

func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		perPage = l
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return
}
