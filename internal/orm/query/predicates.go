package query

import (
	"fmt"

	"github.com/conduit-lang/docmap/internal/engine"
)

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpIn
	OpNotIn
	OpExists
	OpNotExists
	OpBetween
)

// String returns the filter operator the comparison is written as
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "$eq"
	case OpNotEqual:
		return "$ne"
	case OpGreaterThan:
		return "$gt"
	case OpGreaterThanOrEqual:
		return "$gte"
	case OpLessThan:
		return "$lt"
	case OpLessThanOrEqual:
		return "$lte"
	case OpIn:
		return "$in"
	case OpNotIn:
		return "$nin"
	case OpExists, OpNotExists:
		return "$exists"
	case OpBetween:
		return "$between"
	default:
		return "UNKNOWN"
	}
}

// Condition is one field comparison
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Filter renders the condition as a single-field filter
func (c *Condition) Filter() (engine.Filter, error) {
	switch c.Operator {
	case OpEqual:
		return engine.Filter{c.Field: c.Value}, nil
	case OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return engine.Filter{c.Field: map[string]any{c.Operator.String(): c.Value}}, nil
	case OpIn, OpNotIn:
		items, ok := engine.AsList(c.Value)
		if !ok {
			return nil, fmt.Errorf("%s on %s expects a list, got %T", c.Operator, c.Field, c.Value)
		}
		return engine.Filter{c.Field: map[string]any{c.Operator.String(): items}}, nil
	case OpExists:
		return engine.Filter{c.Field: map[string]any{"$exists": true}}, nil
	case OpNotExists:
		return engine.Filter{c.Field: map[string]any{"$exists": false}}, nil
	case OpBetween:
		bounds, ok := engine.AsList(c.Value)
		if !ok || len(bounds) != 2 {
			return nil, fmt.Errorf("$between on %s expects [min, max]", c.Field)
		}
		return engine.Filter{c.Field: map[string]any{"$gte": bounds[0], "$lte": bounds[1]}}, nil
	}
	return nil, fmt.Errorf("%w: %d", engine.ErrUnsupportedOperator, int(c.Operator))
}

// PredicateGroup represents a group of predicates combined with AND/OR
type PredicateGroup struct {
	Conditions []*Condition
	Groups     []*PredicateGroup
	Or         bool // true for OR, false for AND
}

// NewPredicateGroup creates a new predicate group
func NewPredicateGroup(or bool) *PredicateGroup {
	return &PredicateGroup{Or: or}
}

// AddCondition adds a condition to the group
func (pg *PredicateGroup) AddCondition(cond *Condition) {
	pg.Conditions = append(pg.Conditions, cond)
}

// AddGroup adds a nested group
func (pg *PredicateGroup) AddGroup(group *PredicateGroup) {
	pg.Groups = append(pg.Groups, group)
}

// IsEmpty reports whether the group holds no predicates at any depth
func (pg *PredicateGroup) IsEmpty() bool {
	if len(pg.Conditions) > 0 {
		return false
	}
	for _, g := range pg.Groups {
		if !g.IsEmpty() {
			return false
		}
	}
	return true
}

// Filter renders the group. Conditions come first, then nested groups; a
// group of one part renders as that part and an empty group matches
// everything.
func (pg *PredicateGroup) Filter() (engine.Filter, error) {
	parts := make([]any, 0, len(pg.Conditions)+len(pg.Groups))
	for _, c := range pg.Conditions {
		f, err := c.Filter()
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}
	for _, g := range pg.Groups {
		if g.IsEmpty() {
			continue
		}
		f, err := g.Filter()
		if err != nil {
			return nil, err
		}
		parts = append(parts, f)
	}

	switch len(parts) {
	case 0:
		return engine.Filter{}, nil
	case 1:
		return parts[0].(engine.Filter), nil
	}
	if pg.Or {
		return engine.Filter{"$or": parts}, nil
	}
	return engine.Filter{"$and": parts}, nil
}

// PredicateBuilder builds nested predicate groups fluently. Conditions are
// conjoined until Or starts another alternative, so AND binds tighter than
// OR.
type PredicateBuilder struct {
	alts []*PredicateGroup
}

// NewPredicateBuilder creates an empty builder
func NewPredicateBuilder() *PredicateBuilder {
	return &PredicateBuilder{alts: []*PredicateGroup{NewPredicateGroup(false)}}
}

func (pb *PredicateBuilder) current() *PredicateGroup {
	return pb.alts[len(pb.alts)-1]
}

// And adds a condition to the current alternative
func (pb *PredicateBuilder) And(field string, op Operator, value any) *PredicateBuilder {
	pb.current().AddCondition(&Condition{Field: field, Operator: op, Value: value})
	return pb
}

// Or starts a new alternative holding the condition
func (pb *PredicateBuilder) Or(field string, op Operator, value any) *PredicateBuilder {
	alt := NewPredicateGroup(false)
	alt.AddCondition(&Condition{Field: field, Operator: op, Value: value})
	pb.alts = append(pb.alts, alt)
	return pb
}

// AndGroup adds the predicates built by fn as one nested group
func (pb *PredicateBuilder) AndGroup(fn func(*PredicateBuilder)) *PredicateBuilder {
	sub := NewPredicateBuilder()
	fn(sub)
	pb.current().AddGroup(sub.Group())
	return pb
}

// OrGroup adds a nested group matching when any condition fn adds matches
func (pb *PredicateBuilder) OrGroup(fn func(*PredicateBuilder)) *PredicateBuilder {
	sub := NewPredicateBuilder()
	fn(sub)
	g := sub.Group()
	g.Or = true
	pb.current().AddGroup(g)
	return pb
}

// Group returns the built predicates as one group
func (pb *PredicateBuilder) Group() *PredicateGroup {
	if len(pb.alts) == 1 {
		return pb.alts[0]
	}
	g := NewPredicateGroup(true)
	for _, alt := range pb.alts {
		g.AddGroup(alt)
	}
	return g
}

// IsEmpty reports whether no predicate was added
func (pb *PredicateBuilder) IsEmpty() bool {
	return pb.Group().IsEmpty()
}

// Filter renders the built predicates
func (pb *PredicateBuilder) Filter() (engine.Filter, error) {
	return pb.Group().Filter()
}
