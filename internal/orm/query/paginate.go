package query

import (
	"context"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/document"
)

// PageOptions selects one page of results. Page is zero-based. A zero Limit
// is passed to the engine as is, which treats it as unbounded.
type PageOptions struct {
	Page     int64
	Limit    int64
	Sort     []engine.SortField
	Populate []string
}

// Page is one page of documents
type Page struct {
	// Total counts every matching document, not just this page
	Total int64 `json:"total"`
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Skip  int64 `json:"skip"`
	// Current is the number of items on this page
	Current int64                `json:"current"`
	Items   []*document.Document `json:"-"`
}

// HasNext reports whether a later page holds more documents
func (p *Page) HasNext() bool {
	if p.Limit <= 0 {
		return false
	}
	return p.Skip+p.Current < p.Total
}

// Paginate counts the documents matching filter and loads the requested
// page. The page starts at Page*Limit.
func (r *Repository) Paginate(ctx context.Context, filter engine.Filter, opts PageOptions) (*Page, error) {
	if opts.Page < 0 {
		opts.Page = 0
	}
	if opts.Limit < 0 {
		opts.Limit = 0
	}
	skip := opts.Page * opts.Limit

	total, err := r.Count(ctx, filter, nil)
	if err != nil {
		return nil, err
	}

	items, err := r.FindMany(ctx, filter, &engine.FindOptions{
		Skip:     skip,
		Limit:    opts.Limit,
		Sort:     opts.Sort,
		Populate: opts.Populate,
	})
	if err != nil {
		return nil, err
	}

	return &Page{
		Total:   total,
		Page:    opts.Page,
		Limit:   opts.Limit,
		Skip:    skip,
		Current: int64(len(items)),
		Items:   items,
	}, nil
}
