package shared

import (
	"math"
	"net/url"
	"strconv"
)

// DefaultPerPage is used when a listing does not pick its own page size.
const DefaultPerPage = 20

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata. Pages past the end are clamped
// to the last page.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageFromQuery reads the 1-based page query parameter, defaulting to 1.
func PageFromQuery(q url.Values) int {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// Bounds returns the half-open slice range of the current page.
func (p Pagination) Bounds() (start, end int) {
	start = (p.Page - 1) * p.PerPage
	if start > p.Total {
		start = p.Total
	}
	end = start + p.PerPage
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

// HasPrev reports whether an earlier page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a later page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// PrevPage is the previous page number.
func (p Pagination) PrevPage() int { return p.Page - 1 }

// NextPage is the next page number.
func (p Pagination) NextPage() int { return p.Page + 1 }
