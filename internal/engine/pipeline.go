package engine

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RunPipeline evaluates an aggregation pipeline in process over records. It
// supports $match, $sort, $skip, $limit, $count and inclusion-style $project.
func RunPipeline(records []Record, pipeline Pipeline) ([]Record, error) {
	current := make([]Record, len(records))
	copy(current, records)

	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("pipeline stage %d must have exactly one operator", i)
		}
		for op, arg := range stage {
			var err error
			current, err = runStage(current, op, arg)
			if err != nil {
				return nil, fmt.Errorf("pipeline stage %d (%s): %w", i, op, err)
			}
		}
	}
	return current, nil
}

func runStage(records []Record, op string, arg any) ([]Record, error) {
	switch op {
	case "$match":
		rec, ok := AsRecord(arg)
		if !ok {
			if f, isFilter := arg.(Filter); isFilter {
				rec = Record(f)
			} else {
				return nil, fmt.Errorf("expects a filter document")
			}
		}
		out := make([]Record, 0, len(records))
		for _, r := range records {
			ok, err := Match(Filter(rec), r)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, r)
			}
		}
		return out, nil

	case "$sort":
		fields, err := sortFields(arg)
		if err != nil {
			return nil, err
		}
		SortRecords(records, fields)
		return records, nil

	case "$skip":
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("expects a number")
		}
		return Window(records, int64(n), 0), nil

	case "$limit":
		n, ok := toFloat(arg)
		if !ok || n <= 0 {
			return nil, fmt.Errorf("expects a positive number")
		}
		return Window(records, 0, int64(n)), nil

	case "$count":
		name, ok := arg.(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("expects a field name")
		}
		if len(records) == 0 {
			return []Record{}, nil
		}
		return []Record{{name: len(records)}}, nil

	case "$project":
		spec, ok := AsRecord(arg)
		if !ok {
			return nil, fmt.Errorf("expects a projection document")
		}
		out := make([]Record, len(records))
		for i, r := range records {
			out[i] = project(r, spec)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
}

func sortFields(arg any) ([]SortField, error) {
	switch val := arg.(type) {
	case []SortField:
		return val, nil
	case primitive.D:
		fields := make([]SortField, 0, len(val))
		for _, e := range val {
			n, _ := toFloat(e.Value)
			fields = append(fields, SortField{Field: e.Key, Desc: n < 0})
		}
		return fields, nil
	}
	rec, ok := AsRecord(arg)
	if !ok {
		return nil, fmt.Errorf("expects a sort document")
	}
	// Plain maps carry no key order; sort keys by name for determinism.
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]SortField, 0, len(keys))
	for _, k := range keys {
		n, _ := toFloat(rec[k])
		fields = append(fields, SortField{Field: k, Desc: n < 0})
	}
	return fields, nil
}

func project(r Record, spec Record) Record {
	out := Record{}
	includeID := true
	for field, v := range spec {
		on := truthy(v)
		if field == IDField {
			includeID = on
			continue
		}
		if on {
			if val, ok := Lookup(r, field); ok {
				out[field] = val
			}
		}
	}
	if includeID {
		if id, ok := r[IDField]; ok {
			out[IDField] = id
		}
	}
	return out
}

func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	n, ok := toFloat(v)
	return ok && n != 0
}
