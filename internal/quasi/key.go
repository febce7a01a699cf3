// Package quasi implements the quasi-immutable field protocol: per-field
// monitors, the dependency registry linking monitors to compiled units, and
// the invalidation fan-out run at field-write sites.
package quasi

import (
	"fmt"

	"github.com/funvibe/portaljit/internal/object"
)

// NoIndex marks a key that names a whole field rather than one element.
const NoIndex = -1

// elementField is the pseudo field name of sequence element keys.
const elementField = "[]"

// Key identifies a monitored location: a field of one object, or one
// element of one list.
type Key struct {
	Object uint64
	Field  string
	Index  int
}

// FieldKey names obj.field, identified by the object's identity.
func FieldKey(objectID uint64, field string) Key {
	return Key{Object: objectID, Field: field, Index: NoIndex}
}

// ElementKey names list[index] of a quasi-immutable sequence.
func ElementKey(listID uint64, index int) Key {
	return Key{Object: listID, Field: elementField, Index: index}
}

// KeyOf builds a field key from a heap value.
func KeyOf(obj object.Identity, field string) Key {
	return FieldKey(obj.ObjectID(), field)
}

func (k Key) IsElement() bool { return k.Index != NoIndex }

func (k Key) String() string {
	if k.IsElement() {
		return fmt.Sprintf("#%d[%d]", k.Object, k.Index)
	}
	return fmt.Sprintf("#%d.%s", k.Object, k.Field)
}

func (k Key) less(o Key) bool {
	if k.Object != o.Object {
		return k.Object < o.Object
	}
	if k.Field != o.Field {
		return k.Field < o.Field
	}
	return k.Index < o.Index
}
