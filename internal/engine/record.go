package engine

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Record is the raw, storage-shaped form of a document: a flat map of field
// name to value. Reference fields hold identifiers or, once populated, nested
// Records.
type Record map[string]any

// ID returns the record identity or nil.
func (r Record) ID() any {
	if r == nil {
		return nil
	}
	return r[IDField]
}

// Clone returns a deep copy of the record. Nested records and lists are
// copied; other values are shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue returns a deep copy of a record value. Nested records and
// lists are copied; other values are returned as is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case Record:
		return val.Clone()
	case map[string]any:
		return Record(val).Clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []Record:
		out := make([]Record, len(val))
		for i, item := range val {
			out[i] = item.Clone()
		}
		return out
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && !rv.IsNil() && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	}
	return v
}

// AsRecord reports whether v is a nested record and returns it as a Record.
// bson documents decoded by the mongo driver are accepted.
func AsRecord(v any) (Record, bool) {
	switch val := v.(type) {
	case Record:
		return val, val != nil
	case map[string]any:
		return Record(val), val != nil
	case primitive.M:
		return Record(val), val != nil
	case primitive.D:
		out := make(Record, len(val))
		for _, e := range val {
			out[e.Key] = e.Value
		}
		return out, true
	}
	return nil, false
}

// AsList reports whether v is a list and returns its elements in order.
func AsList(v any) ([]any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case []any:
		return val, true
	case primitive.A:
		return []any(val), true
	case []Record:
		out := make([]any, len(val))
		for i, r := range val {
			out[i] = r
		}
		return out, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	// primitive.ObjectID and uuid.UUID are byte arrays, not lists.
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// IsIdentifier reports whether v is a bare document identifier rather than a
// nested record.
func IsIdentifier(v any) bool {
	switch v.(type) {
	case string, primitive.ObjectID, uuid.UUID:
		return true
	}
	return false
}

// IDKey returns a canonical string form of an identity, usable as a map key.
// Object ids and their hex strings share a key.
func IDKey(id any) string {
	switch val := id.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return val.Hex()
	case uuid.UUID:
		return val.String()
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(id)
}

// SameID reports whether two identities refer to the same document.
func SameID(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return IDKey(a) == IDKey(b)
}

// ObjectIDFrom converts a 24-character hex string into an object id and
// returns any other value unchanged.
func ObjectIDFrom(id any) any {
	if s, ok := id.(string); ok && primitive.IsValidObjectID(s) {
		oid, err := primitive.ObjectIDFromHex(s)
		if err == nil {
			return oid
		}
	}
	return id
}

// Reference reduces a reference value to an identity: instances yield their
// identity, nested records their _id, identifiers themselves.
func Reference(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case Identifier:
		return val.Identity()
	}
	if rec, ok := AsRecord(v); ok {
		return rec.ID()
	}
	return v
}

// ReduceRefs returns a shallow copy of record whose reference fields hold
// identities only. Multi-valued references drop nil elements. Fields the collection
// spec does not declare are copied untouched.
func ReduceRefs(spec CollectionSpec, record Record) Record {
	out := make(Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	for _, f := range spec.Refs() {
		v, ok := record[f.Name]
		if !ok {
			continue
		}
		if !f.Multi {
			out[f.Name] = Reference(v)
			continue
		}
		items, _ := AsList(v)
		ids := make([]any, 0, len(items))
		for _, item := range items {
			if id := Reference(item); id != nil {
				ids = append(ids, id)
			}
		}
		out[f.Name] = ids
	}
	return out
}

// FromBSON converts a document decoded by the mongo driver into a Record,
// turning nested bson documents and arrays into Records and []any, int32
// into int and DateTime into time.Time.
func FromBSON(m bson.M) Record {
	out := make(Record, len(m))
	for k, v := range m {
		out[k] = fromBSONValue(v)
	}
	return out
}

func fromBSONValue(v any) any {
	switch val := v.(type) {
	case Record:
		return FromBSON(bson.M(val))
	case primitive.M:
		return FromBSON(bson.M(val))
	case map[string]any:
		return FromBSON(bson.M(val))
	case primitive.D:
		rec, _ := AsRecord(val)
		return FromBSON(bson.M(rec))
	case primitive.A:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromBSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromBSONValue(item)
		}
		return out
	case int32:
		return int(val)
	case primitive.DateTime:
		return val.Time().UTC()
	}
	return v
}

// ToBSON converts a record into a bson document, recursively converting
// nested Records.
func ToBSON(r Record) bson.M {
	out := make(bson.M, len(r))
	for k, v := range r {
		out[k] = toBSONValue(v)
	}
	return out
}

func toBSONValue(v any) any {
	switch val := v.(type) {
	case Record:
		return ToBSON(val)
	case map[string]any:
		return ToBSON(Record(val))
	case []any:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = toBSONValue(item)
		}
		return out
	case []Record:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = ToBSON(item)
		}
		return out
	}
	return v
}

// MarshalRecord encodes a record as BSON.
func MarshalRecord(r Record) ([]byte, error) {
	return bson.Marshal(ToBSON(r))
}

// UnmarshalRecord decodes a BSON-encoded record.
func UnmarshalRecord(data []byte) (Record, error) {
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return FromBSON(m), nil
}
