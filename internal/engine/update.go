package engine

import (
	"fmt"
	"strings"
)

// ApplyUpdate applies an update document to a copy of record and reports
// whether anything changed. Supported operators are $set, $unset, $inc and
// $push; an update without operators is treated as $set of every key.
func ApplyUpdate(record Record, update Update) (Record, bool, error) {
	out := record.Clone()
	if !hasOperators(update) {
		update = Update{"$set": map[string]any(update)}
	}

	changed := false
	for op, arg := range update {
		fields, ok := AsRecord(arg)
		if !ok {
			return nil, false, fmt.Errorf("%s expects a document", op)
		}
		for path, value := range fields {
			if path == IDField {
				continue
			}
			var (
				did bool
				err error
			)
			switch op {
			case "$set":
				did = setPath(out, path, value)
			case "$unset":
				did = unsetPath(out, path)
			case "$inc":
				did, err = incPath(out, path, value)
			case "$push":
				did, err = pushPath(out, path, value)
			default:
				return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
			}
			if err != nil {
				return nil, false, err
			}
			changed = changed || did
		}
	}
	return out, changed, nil
}

func hasOperators(update Update) bool {
	for k := range update {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// parent walks to the record holding the last path segment, creating
// intermediate records when create is set.
func parent(record Record, path string, create bool) (Record, string) {
	parts := strings.Split(path, ".")
	current := record
	for _, part := range parts[:len(parts)-1] {
		next, ok := AsRecord(current[part])
		if !ok {
			if !create {
				return nil, ""
			}
			next = Record{}
			current[part] = next
		}
		current = next
	}
	return current, parts[len(parts)-1]
}

func setPath(record Record, path string, value any) bool {
	p, key := parent(record, path, true)
	old, existed := p[key]
	p[key] = value
	return !existed || !Equal(old, value)
}

func unsetPath(record Record, path string) bool {
	p, key := parent(record, path, false)
	if p == nil {
		return false
	}
	if _, ok := p[key]; !ok {
		return false
	}
	delete(p, key)
	return true
}

func incPath(record Record, path string, delta any) (bool, error) {
	d, ok := toFloat(delta)
	if !ok {
		return false, fmt.Errorf("$inc on %s: non-numeric delta %v", path, delta)
	}
	p, key := parent(record, path, true)
	current, exists := p[key]
	if !exists || current == nil {
		p[key] = delta
		return true, nil
	}
	c, ok := toFloat(current)
	if !ok {
		return false, fmt.Errorf("$inc on %s: non-numeric value %v", path, current)
	}
	switch current.(type) {
	case int:
		p[key] = current.(int) + int(d)
	case int32:
		p[key] = current.(int32) + int32(d)
	case int64:
		p[key] = current.(int64) + int64(d)
	default:
		p[key] = c + d
	}
	return d != 0, nil
}

func pushPath(record Record, path string, value any) (bool, error) {
	p, key := parent(record, path, true)
	current, exists := p[key]
	if !exists || current == nil {
		p[key] = []any{value}
		return true, nil
	}
	items, ok := AsList(current)
	if !ok {
		return false, fmt.Errorf("$push on %s: field is not a list", path)
	}
	p[key] = append(append([]any{}, items...), value)
	return true, nil
}
