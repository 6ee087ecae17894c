package schema

import (
	"context"
	"time"
)

// TimestampedClass is the name of the base class declared by Timestamped
const TimestampedClass = "Timestamped"

// Timestamp field names
const (
	CreatedAtField = "createdAt"
	UpdatedAtField = "updatedAt"
)

// Timestamped declares an abstract base class with createdAt and updatedAt
// fields. Before every create or update, createdAt is set when it is still
// empty and updatedAt is set to the current time. Classes opt in with
// Extends(TimestampedClass). A nil now uses time.Now.
func Timestamped(now func() time.Time) *Declaration {
	if now == nil {
		now = time.Now
	}
	return Declare(TimestampedClass).
		Property(CreatedAtField).
		Property(UpdatedAtField).
		Method("touchTimestamps", func(_ context.Context, inst Instance) error {
			// stored dates keep millisecond precision
			ts := now().UTC().Truncate(time.Millisecond)
			if isUnset(inst.Get(CreatedAtField)) {
				inst.Set(CreatedAtField, ts)
			}
			inst.Set(UpdatedAtField, ts)
			return nil
		}).
		On(BeforeCreate, "touchTimestamps").
		On(BeforeUpdate, "touchTimestamps")
}

func isUnset(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case time.Time:
		return val.IsZero()
	}
	return false
}
