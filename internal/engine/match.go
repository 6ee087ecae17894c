package engine

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Match reports whether record satisfies filter. It evaluates the subset of
// the mongo filter dialect used by engines that query in process: implicit
// equality (including membership in list fields), $eq, $ne, $gt, $gte, $lt,
// $lte, $in, $nin, $exists, $and, $or and $nor. Dotted paths descend into
// nested records.
func Match(filter Filter, record Record) (bool, error) {
	for key, cond := range filter {
		switch key {
		case "$and", "$or", "$nor":
			clauses, err := clauseList(key, cond)
			if err != nil {
				return false, err
			}
			ok, err := matchLogical(key, clauses, record)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, key)
		}

		value, exists := Lookup(record, key)
		ok, err := matchCondition(value, exists, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func clauseList(op string, cond any) ([]Filter, error) {
	items, ok := AsList(cond)
	if !ok {
		return nil, fmt.Errorf("%s expects a list of filters", op)
	}
	clauses := make([]Filter, 0, len(items))
	for _, item := range items {
		switch f := item.(type) {
		case Filter:
			clauses = append(clauses, f)
		default:
			rec, ok := AsRecord(item)
			if !ok {
				return nil, fmt.Errorf("%s expects a list of filters", op)
			}
			clauses = append(clauses, Filter(rec))
		}
	}
	return clauses, nil
}

func matchLogical(op string, clauses []Filter, record Record) (bool, error) {
	for _, clause := range clauses {
		ok, err := Match(clause, record)
		if err != nil {
			return false, err
		}
		switch op {
		case "$and":
			if !ok {
				return false, nil
			}
		case "$or":
			if ok {
				return true, nil
			}
		case "$nor":
			if ok {
				return false, nil
			}
		}
	}
	return op != "$or" || len(clauses) == 0, nil
}

func matchCondition(value any, exists bool, cond any) (bool, error) {
	ops, isOps := operatorMap(cond)
	if !isOps {
		return matchEqual(value, cond), nil
	}

	for op, arg := range ops {
		var ok bool
		switch op {
		case "$eq":
			ok = matchEqual(value, arg)
		case "$ne":
			ok = !matchEqual(value, arg)
		case "$gt", "$gte", "$lt", "$lte":
			ok = matchOrdered(op, value, arg)
		case "$in":
			items, _ := AsList(arg)
			ok = false
			for _, item := range items {
				if matchEqual(value, item) {
					ok = true
					break
				}
			}
		case "$nin":
			items, _ := AsList(arg)
			ok = true
			for _, item := range items {
				if matchEqual(value, item) {
					ok = false
					break
				}
			}
		case "$exists":
			want, _ := arg.(bool)
			ok = exists == want
		default:
			return false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// operatorMap returns cond as an operator document when all its keys start
// with '$'.
func operatorMap(cond any) (map[string]any, bool) {
	rec, ok := AsRecord(cond)
	if !ok || len(rec) == 0 {
		return nil, false
	}
	for k := range rec {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return rec, true
}

// matchEqual compares a stored value with a filter value. A list value
// matches when any element does, or when the whole list is equal.
func matchEqual(value, want any) bool {
	if Equal(value, want) {
		return true
	}
	if items, ok := AsList(value); ok {
		for _, item := range items {
			if Equal(item, want) {
				return true
			}
		}
	}
	return false
}

func matchOrdered(op string, value, arg any) bool {
	candidates := []any{value}
	if items, ok := AsList(value); ok {
		candidates = items
	}
	for _, c := range candidates {
		cmp, ok := Compare(c, arg)
		if !ok {
			continue
		}
		switch op {
		case "$gt":
			if cmp > 0 {
				return true
			}
		case "$gte":
			if cmp >= 0 {
				return true
			}
		case "$lt":
			if cmp < 0 {
				return true
			}
		case "$lte":
			if cmp <= 0 {
				return true
			}
		}
	}
	return false
}

// Lookup resolves a dotted path inside a record.
func Lookup(record Record, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = record
	for _, part := range parts {
		rec, ok := AsRecord(current)
		if !ok {
			return nil, false
		}
		current, ok = rec[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Equal compares two stored values. Numbers compare by value across Go
// numeric types and identities compare by their canonical key.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if (isID(a) || isID(b)) && IsIdentifier(a) && IsIdentifier(b) {
		return IDKey(a) == IDKey(b)
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	if ra, ok := AsRecord(a); ok {
		rb, ok := AsRecord(b)
		if !ok || len(ra) != len(rb) {
			return false
		}
		for k, v := range ra {
			if !Equal(v, rb[k]) {
				return false
			}
		}
		return true
	}
	if la, ok := AsList(a); ok {
		lb, ok := AsList(b)
		if !ok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !Equal(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func isID(v any) bool {
	switch v.(type) {
	case primitive.ObjectID, uuid.UUID:
		return true
	}
	return false
}

// Compare orders two stored values of the same family (numbers, strings,
// times, booleans, object ids). It returns false when they are not
// comparable.
func Compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	switch va := a.(type) {
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(va, vb), true
	case time.Time:
		vb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return va.Compare(vb), true
	case bool:
		vb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case va == vb:
			return 0, true
		case !va:
			return -1, true
		}
		return 1, true
	case primitive.ObjectID:
		vb, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return strings.Compare(va.Hex(), vb.Hex()), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// SortRecords orders records in place. Missing values sort first, as in
// mongo.
func SortRecords(records []Record, fields []SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, f := range fields {
			a, aok := Lookup(records[i], f.Field)
			b, bok := Lookup(records[j], f.Field)
			var cmp int
			switch {
			case !aok && !bok:
				cmp = 0
			case !aok:
				cmp = -1
			case !bok:
				cmp = 1
			default:
				cmp, _ = Compare(a, b)
			}
			if cmp == 0 {
				continue
			}
			if f.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// Window applies skip and limit to an ordered result set. A zero limit means
// no bound.
func Window(records []Record, skip, limit int64) []Record {
	if skip > 0 {
		if skip >= int64(len(records)) {
			return []Record{}
		}
		records = records[skip:]
	}
	if limit > 0 && limit < int64(len(records)) {
		records = records[:limit]
	}
	return records
}
