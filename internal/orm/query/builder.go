package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduit-lang/docmap/internal/engine"
	"github.com/conduit-lang/docmap/internal/orm/document"
)

// Builder provides a fluent API for building repository queries. Field
// names are checked against the class; the first problem is kept and
// returned by the terminal methods.
type Builder struct {
	repo       *Repository
	predicates *PredicateBuilder
	sort       []engine.SortField
	skip       int64
	limit      int64
	populate   []string
	scopeNames []string
	err        error
}

// Query starts a query over the repository's class
func (r *Repository) Query() *Builder {
	return &Builder{
		repo:       r,
		predicates: NewPredicateBuilder(),
	}
}

// Where adds a condition joined with AND
func (qb *Builder) Where(field string, op Operator, value any) *Builder {
	if qb.checkField(field) {
		qb.predicates.And(field, op, value)
	}
	return qb
}

// OrWhere starts a new alternative joined with OR. AND binds tighter, so
// Where(a).Where(b).OrWhere(c) matches (a AND b) OR c.
func (qb *Builder) OrWhere(field string, op Operator, value any) *Builder {
	if qb.checkField(field) {
		qb.predicates.Or(field, op, value)
	}
	return qb
}

// WhereGroup adds a nested group of conditions built by fn
func (qb *Builder) WhereGroup(fn func(*PredicateBuilder)) *Builder {
	qb.predicates.AndGroup(fn)
	return qb
}

// WhereIn adds a membership condition
func (qb *Builder) WhereIn(field string, values []any) *Builder {
	return qb.Where(field, OpIn, values)
}

// WhereNotIn adds a non-membership condition
func (qb *Builder) WhereNotIn(field string, values []any) *Builder {
	return qb.Where(field, OpNotIn, values)
}

// WhereExists requires the field to be stored
func (qb *Builder) WhereExists(field string) *Builder {
	return qb.Where(field, OpExists, nil)
}

// WhereNotExists requires the field to be missing
func (qb *Builder) WhereNotExists(field string) *Builder {
	return qb.Where(field, OpNotExists, nil)
}

// WhereBetween adds an inclusive range condition
func (qb *Builder) WhereBetween(field string, min, max any) *Builder {
	return qb.Where(field, OpBetween, []any{min, max})
}

// OrderBy adds a sort key. direction is "asc" or "desc".
func (qb *Builder) OrderBy(field string, direction string) *Builder {
	if !qb.checkField(field) {
		return qb
	}
	switch strings.ToLower(direction) {
	case "asc", "":
		qb.sort = append(qb.sort, engine.SortField{Field: field})
	case "desc":
		qb.sort = append(qb.sort, engine.SortField{Field: field, Desc: true})
	default:
		qb.fail(fmt.Errorf("%w: %q", ErrInvalidDirection, direction))
	}
	return qb
}

// OrderByAsc sorts ascending by field
func (qb *Builder) OrderByAsc(field string) *Builder {
	return qb.OrderBy(field, "asc")
}

// OrderByDesc sorts descending by field
func (qb *Builder) OrderByDesc(field string) *Builder {
	return qb.OrderBy(field, "desc")
}

// Limit caps the number of results. Zero means unbounded.
func (qb *Builder) Limit(n int64) *Builder {
	qb.limit = n
	return qb
}

// Offset skips the first n results
func (qb *Builder) Offset(n int64) *Builder {
	qb.skip = n
	return qb
}

// Populate expands reference paths on every loaded document
func (qb *Builder) Populate(paths ...string) *Builder {
	for _, p := range paths {
		if qb.checkField(p) {
			qb.populate = append(qb.populate, p)
		}
	}
	return qb
}

// Scope applies reusable query fragments in order
func (qb *Builder) Scope(scopes ...Scope) *Builder {
	for _, s := range scopes {
		s.Apply(qb)
		qb.scopeNames = append(qb.scopeNames, s.Name)
	}
	return qb
}

// Scopes returns the names of the applied scopes
func (qb *Builder) Scopes() []string {
	return append([]string{}, qb.scopeNames...)
}

// Err returns the first problem recorded while building
func (qb *Builder) Err() error {
	return qb.err
}

// Filter renders the conditions
func (qb *Builder) Filter() (engine.Filter, error) {
	if qb.err != nil {
		return nil, qb.err
	}
	return qb.predicates.Filter()
}

// FindOptions returns the paging, sorting and populate options
func (qb *Builder) FindOptions() *engine.FindOptions {
	return &engine.FindOptions{
		Skip:     qb.skip,
		Limit:    qb.limit,
		Sort:     append([]engine.SortField{}, qb.sort...),
		Populate: append([]string{}, qb.populate...),
	}
}

// All executes the query and returns the matching documents
func (qb *Builder) All(ctx context.Context) ([]*document.Document, error) {
	filter, err := qb.Filter()
	if err != nil {
		return nil, err
	}
	return qb.repo.FindMany(ctx, filter, qb.FindOptions())
}

// First returns the first matching document, or engine.ErrNotFound
func (qb *Builder) First(ctx context.Context) (*document.Document, error) {
	filter, err := qb.Filter()
	if err != nil {
		return nil, err
	}
	return qb.repo.FindOne(ctx, filter, qb.FindOptions())
}

// Count returns the number of matching documents, ignoring paging
func (qb *Builder) Count(ctx context.Context) (int64, error) {
	filter, err := qb.Filter()
	if err != nil {
		return 0, err
	}
	return qb.repo.Count(ctx, filter, nil)
}

// Exists reports whether any document matches
func (qb *Builder) Exists(ctx context.Context) (bool, error) {
	n, err := qb.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Paginate loads one page of the matching documents using the builder's
// limit as the page size
func (qb *Builder) Paginate(ctx context.Context, page int64) (*Page, error) {
	filter, err := qb.Filter()
	if err != nil {
		return nil, err
	}
	return qb.repo.Paginate(ctx, filter, PageOptions{
		Page:     page,
		Limit:    qb.limit,
		Sort:     qb.sort,
		Populate: qb.populate,
	})
}

// Clone returns an independent copy of the builder
func (qb *Builder) Clone() *Builder {
	c := *qb
	c.predicates = &PredicateBuilder{alts: make([]*PredicateGroup, len(qb.predicates.alts))}
	for i, alt := range qb.predicates.alts {
		c.predicates.alts[i] = alt.clone()
	}
	c.sort = append([]engine.SortField{}, qb.sort...)
	c.populate = append([]string{}, qb.populate...)
	c.scopeNames = append([]string{}, qb.scopeNames...)
	return &c
}

func (pg *PredicateGroup) clone() *PredicateGroup {
	out := &PredicateGroup{
		Conditions: append([]*Condition{}, pg.Conditions...),
		Or:         pg.Or,
	}
	for _, g := range pg.Groups {
		out.Groups = append(out.Groups, g.clone())
	}
	return out
}

// checkField records an error unless the root of a dotted path is the
// identity or a declared field
func (qb *Builder) checkField(path string) bool {
	root, _, _ := strings.Cut(path, ".")
	if root == engine.IDField {
		return true
	}
	if _, ok := qb.repo.class.Field(root); ok {
		return true
	}
	qb.fail(fmt.Errorf("%w: %s has no field %q", ErrUnknownField, qb.repo.class.Name(), root))
	return false
}

func (qb *Builder) fail(err error) {
	if qb.err == nil {
		qb.err = err
	}
}
