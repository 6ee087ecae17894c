package query

import "fmt"

// Scope is a named, reusable query fragment
type Scope struct {
	Name  string
	Apply func(*Builder)
}

// ScopeRegistry holds the named scopes of one class
type ScopeRegistry struct {
	scopes map[string]Scope
	order  []string
}

// NewScopeRegistry creates an empty registry
func NewScopeRegistry() *ScopeRegistry {
	return &ScopeRegistry{scopes: make(map[string]Scope)}
}

// Register adds or replaces a scope
func (sr *ScopeRegistry) Register(scope Scope) {
	if _, ok := sr.scopes[scope.Name]; !ok {
		sr.order = append(sr.order, scope.Name)
	}
	sr.scopes[scope.Name] = scope
}

// Get returns a scope by name
func (sr *ScopeRegistry) Get(name string) (Scope, error) {
	scope, ok := sr.scopes[name]
	if !ok {
		return Scope{}, fmt.Errorf("%w: %s", ErrUnknownScope, name)
	}
	return scope, nil
}

// Has reports whether a scope is registered
func (sr *ScopeRegistry) Has(name string) bool {
	_, ok := sr.scopes[name]
	return ok
}

// List returns scope names in registration order
func (sr *ScopeRegistry) List() []string {
	return append([]string{}, sr.order...)
}

// Recent orders by field, newest first, and keeps n documents
func Recent(field string, n int64) Scope {
	return Scope{
		Name: "recent",
		Apply: func(qb *Builder) {
			qb.OrderByDesc(field).Limit(n)
		},
	}
}

// Since keeps documents whose field is at or after t
func Since(field string, t any) Scope {
	return Scope{
		Name: "since",
		Apply: func(qb *Builder) {
			qb.Where(field, OpGreaterThanOrEqual, t)
		},
	}
}

// Before keeps documents whose field is strictly before t
func Before(field string, t any) Scope {
	return Scope{
		Name: "before",
		Apply: func(qb *Builder) {
			qb.Where(field, OpLessThan, t)
		},
	}
}

// Flagged keeps documents whose boolean field equals value
func Flagged(field string, value bool) Scope {
	return Scope{
		Name: field,
		Apply: func(qb *Builder) {
			qb.Where(field, OpEqual, value)
		},
	}
}

// Paged selects a zero-based page of perPage documents
func Paged(page, perPage int64) Scope {
	return Scope{
		Name: "paginate",
		Apply: func(qb *Builder) {
			qb.Offset(page * perPage).Limit(perPage)
		},
	}
}
