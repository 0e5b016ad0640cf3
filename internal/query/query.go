// Package query applies free-text filtering, stable sorting and page-based
// slicing to normalized record collections.
package query

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/airview/airview/internal/api"
)

// Record is any record kind the processor can filter and sort.
type Record interface {
	SearchFields() []string
	FieldByPath(path string) (any, bool)
}

// SortDirection orders sort output.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// Parameters are the transient per-request query parameters.
type Parameters struct {
	Search    string
	SortBy    string
	SortOrder SortDirection
	Page      int
	PageSize  int
}

// Validate checks the caller-supplied parameters. Invalid parameters are a
// caller error, never a fallback trigger.
func (p Parameters) Validate() error {
	if p.PageSize <= 0 {
		return api.NewValidationError("INVALID_PAGE_SIZE", "pageSize must be >= 1")
	}
	if p.Page <= 0 {
		return api.NewValidationError("INVALID_PAGE", "page must be >= 1")
	}
	if p.SortOrder != "" && p.SortOrder != Ascending && p.SortOrder != Descending {
		return api.NewValidationError("INVALID_SORT_ORDER", "sortOrder must be asc or desc")
	}
	return nil
}

// Process filters, sorts and slices records into one result page.
// The input slice is never reordered; equal sort keys keep their original
// relative order in both directions.
func Process[T Record](records []T, p Parameters) (api.PaginatedResult[T], error) {
	if err := p.Validate(); err != nil {
		return api.PaginatedResult[T]{}, err
	}

	filtered := filter(records, p.Search)

	if p.SortBy != "" {
		desc := p.SortOrder == Descending
		sort.SliceStable(filtered, func(i, j int) bool {
			c := compareKeys(sortKey(filtered[i], p.SortBy), sortKey(filtered[j], p.SortBy))
			if desc {
				return c > 0
			}
			return c < 0
		})
	}

	total := len(filtered)
	totalPages := int(math.Ceil(float64(total) / float64(p.PageSize)))

	start := (p.Page - 1) * p.PageSize
	end := start + p.PageSize
	items := make([]T, 0, p.PageSize)
	if start < total {
		if end > total {
			end = total
		}
		items = append(items, filtered[start:end]...)
	}

	return api.PaginatedResult[T]{
		Items:      items,
		TotalCount: total,
		PageNumber: p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
	}, nil
}

func filter[T Record](records []T, search string) []T {
	out := make([]T, 0, len(records))
	if search == "" {
		return append(out, records...)
	}
	needle := strings.ToLower(search)
	for _, r := range records {
		for _, f := range r.SearchFields() {
			if strings.Contains(strings.ToLower(f), needle) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// sortKey resolves the sort field; missing and nil values sort as "".
type key struct {
	num   float64
	str   string
	isNum bool
}

func sortKey[T Record](r T, path string) key {
	v, ok := r.FieldByPath(path)
	if !ok || v == nil {
		return key{str: ""}
	}
	switch n := v.(type) {
	case float64:
		return key{num: n, isNum: true}
	case float32:
		return key{num: float64(n), isNum: true}
	case int:
		return key{num: float64(n), isNum: true}
	case int64:
		return key{num: float64(n), isNum: true}
	case bool:
		return key{str: strconv.FormatBool(n)}
	case string:
		return key{str: strings.ToLower(n)}
	default:
		return key{str: ""}
	}
}

// compareKeys compares numerically when both keys are numeric, otherwise as
// case-insensitive strings (numbers stringify for mixed comparisons).
func compareKeys(a, b key) int {
	if a.isNum && b.isNum {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	}
	return strings.Compare(keyString(a), keyString(b))
}

func keyString(k key) string {
	if k.isNum {
		return strconv.FormatFloat(k.num, 'f', -1, 64)
	}
	return k.str
}
