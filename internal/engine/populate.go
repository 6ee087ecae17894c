package engine

import (
	"context"
	"fmt"
	"strings"
)

// PopulatePath is one root reference field to expand plus the nested paths
// to expand inside the referenced records.
type PopulatePath struct {
	Field  string
	Nested []string
}

// SplitPaths groups dotted populate paths by their root field, keeping the
// order in which roots first appear. "leader.children" and "leader" both
// contribute to the "leader" root.
func SplitPaths(paths []string) []PopulatePath {
	var out []PopulatePath
	index := make(map[string]int)
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		root, rest, _ := strings.Cut(p, ".")
		i, ok := index[root]
		if !ok {
			i = len(out)
			index[root] = i
			out = append(out, PopulatePath{Field: root})
		}
		if rest != "" {
			out[i].Nested = append(out[i].Nested, rest)
		}
	}
	return out
}

// RootFields returns the distinct root fields named by populate paths.
func RootFields(paths []string) []string {
	split := SplitPaths(paths)
	roots := make([]string, len(split))
	for i, p := range split {
		roots[i] = p.Field
	}
	return roots
}

// Resolver gives PopulateRecord access to the other bound collections of an
// engine that evaluates references in process.
type Resolver interface {
	// CollectionSpec returns the spec a collection was bound with.
	CollectionSpec(name string) (CollectionSpec, bool)

	// Lookup fetches the records with the given identities from a
	// collection, keyed by IDKey. Missing identities are absent from the map.
	Lookup(ctx context.Context, collection string, ids []any) (map[string]Record, error)
}

// PopulateRecord expands reference fields of record in place following the
// given paths. A single reference whose target no longer exists becomes nil;
// missing elements of a multi-valued reference are dropped. Values that are already nested records are re-fetched by their
// identity.
func PopulateRecord(ctx context.Context, r Resolver, spec CollectionSpec, record Record, paths []string) (Record, error) {
	if record == nil {
		return nil, nil
	}
	for _, p := range SplitPaths(paths) {
		field, ok := spec.Field(p.Field)
		if !ok || !field.IsRef() {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownPath, spec.Name, p.Field)
		}
		target, ok := r.CollectionSpec(field.RefCollection)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, field.RefCollection)
		}

		raw := record[p.Field]
		var ids []any
		if field.Multi {
			items, _ := AsList(raw)
			for _, item := range items {
				if id := Reference(item); id != nil {
					ids = append(ids, id)
				}
			}
		} else if id := Reference(raw); id != nil {
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			if field.Multi {
				record[p.Field] = []any{}
			} else {
				record[p.Field] = nil
			}
			continue
		}

		found, err := r.Lookup(ctx, target.Name, ids)
		if err != nil {
			return nil, fmt.Errorf("populate %s: %w", p.Field, err)
		}

		resolved := make([]any, 0, len(ids))
		for _, id := range ids {
			sub, ok := found[IDKey(id)]
			if !ok {
				continue
			}
			sub = sub.Clone()
			if len(p.Nested) > 0 {
				if _, err := PopulateRecord(ctx, r, target, sub, p.Nested); err != nil {
					return nil, err
				}
			}
			resolved = append(resolved, sub)
		}

		if field.Multi {
			record[p.Field] = resolved
		} else if len(resolved) == 1 {
			record[p.Field] = resolved[0]
		} else {
			record[p.Field] = nil
		}
	}
	return record, nil
}
