package common

import (
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// PaginationInfo contains pagination details
type PaginationInfo struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Page is one slice of a larger result
type Page[T any] struct {
	Items      []T             `json:"items"`
	Pagination *PaginationInfo `json:"pagination"`
}

// ExtractPaginationParams reads page and page_size from the query string.
// Missing or non-positive values fall back to defaults; page_size is capped.
func ExtractPaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Page: 1, PageSize: DefaultPageSize}

	if page := r.URL.Query().Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			params.Page = p
		}
	}
	if pageSize := r.URL.Query().Get("page_size"); pageSize != "" {
		if ps, err := strconv.Atoi(pageSize); err == nil && ps > 0 {
			if ps > MaxPageSize {
				ps = MaxPageSize
			}
			params.PageSize = ps
		}
	}
	return params
}

// CalculateOffset calculates the offset of the first item on the page
func (p PaginationParams) CalculateOffset() int {
	return (p.Page - 1) * p.PageSize
}

// CalculateTotalPages calculates total number of pages
func CalculateTotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := total / pageSize
	if total%pageSize > 0 {
		pages++
	}
	return pages
}

// BuildPaginationMeta builds pagination metadata
func BuildPaginationMeta(page, pageSize, total int) *PaginationInfo {
	totalPages := CalculateTotalPages(total, pageSize)
	return &PaginationInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Paginate cuts the requested page out of an already ordered slice. A page
// past the end is empty, never nil.
func Paginate[T any](items []T, params PaginationParams) Page[T] {
	start := params.CalculateOffset()
	if start > len(items) {
		start = len(items)
	}
	end := start + params.PageSize
	if end > len(items) {
		end = len(items)
	}

	out := make([]T, end-start)
	copy(out, items[start:end])
	return Page[T]{
		Items:      out,
		Pagination: BuildPaginationMeta(params.Page, params.PageSize, len(items)),
	}
}
