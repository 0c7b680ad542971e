package models

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 200
)

var columnNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ListParams carries pagination, sorting, and the three supported filter
// shapes: equality, IN-list, and per-column date range.
type ListParams struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
	Filters   map[string]string   // filter[col]=v
	InFilters map[string][]string // in[col]=a,b,c
	From      map[string]string   // from[col]=2026-01-01
	To        map[string]string   // to[col]=2026-01-31
}

// ParseListParams reads query parameters of the form page, page_size,
// sort_by, sort_order, filter[col], in[col], from[col], to[col].
func ParseListParams(r *http.Request) (*ListParams, error) {
	p := &ListParams{
		Page:      1,
		PageSize:  DefaultPageSize,
		Filters:   map[string]string{},
		InFilters: map[string][]string{},
		From:      map[string]string{},
		To:        map[string]string{},
	}

	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid page %q", v)
		}
		p.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid page_size %q", v)
		}
		if n > MaxPageSize {
			n = MaxPageSize
		}
		p.PageSize = n
	}
	p.SortBy = q.Get("sort_by")
	if p.SortOrder = q.Get("sort_order"); p.SortOrder == "" {
		p.SortOrder = "desc"
	}

	for key, vals := range q {
		if len(vals) == 0 {
			continue
		}
		if !strings.HasSuffix(key, "]") {
			continue
		}
		switch {
		case strings.HasPrefix(key, "filter["):
			p.Filters[strings.TrimSuffix(strings.TrimPrefix(key, "filter["), "]")] = vals[0]
		case strings.HasPrefix(key, "in["):
			p.InFilters[strings.TrimSuffix(strings.TrimPrefix(key, "in["), "]")] = strings.Split(vals[0], ",")
		case strings.HasPrefix(key, "from["):
			p.From[strings.TrimSuffix(strings.TrimPrefix(key, "from["), "]")] = vals[0]
		case strings.HasPrefix(key, "to["):
			p.To[strings.TrimSuffix(strings.TrimPrefix(key, "to["), "]")] = vals[0]
		}
	}
	return p, p.Validate()
}

// Validate rejects column names that could not be real identifiers, since
// filter keys end up in SQL.
func (p *ListParams) Validate() error {
	check := func(col string) error {
		if !columnNameRe.MatchString(col) {
			return fmt.Errorf("invalid filter column %q", col)
		}
		return nil
	}
	for col := range p.Filters {
		if err := check(col); err != nil {
			return err
		}
	}
	for col := range p.InFilters {
		if err := check(col); err != nil {
			return err
		}
	}
	for col := range p.From {
		if err := check(col); err != nil {
			return err
		}
	}
	for col := range p.To {
		if err := check(col); err != nil {
			return err
		}
	}
	if p.SortBy != "" && !columnNameRe.MatchString(p.SortBy) {
		return fmt.Errorf("invalid sort column %q", p.SortBy)
	}
	return nil
}

// Offset returns the row offset for the current page.
func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Apply appends the filter constraints (not pagination) to a query.
func (p *ListParams) Apply(q *gorm.DB) *gorm.DB {
	for col, val := range p.Filters {
		q = q.Where(col+" = ?", val)
	}
	for col, vals := range p.InFilters {
		q = q.Where(col+" IN ?", vals)
	}
	for col, val := range p.From {
		q = q.Where(col+" >= ?", val)
	}
	for col, val := range p.To {
		q = q.Where(col+" <= ?", val)
	}
	return q
}

// ApplySort appends ORDER BY when a sort column was requested.
func (p *ListParams) ApplySort(q *gorm.DB) *gorm.DB {
	if p.SortBy == "" {
		return q
	}
	order := p.SortBy + " ASC"
	if p.SortOrder == "desc" {
		order = p.SortBy + " DESC"
	}
	return q.Order(order)
}
