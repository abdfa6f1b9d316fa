package voicelive

import "encoding/json"

// Opt is a tri-state configuration leaf: unset (inherit the default),
// explicitly null (disable the feature), or a value. The zero value is unset.
//
// The distinction matters on the wire: an explicit null is transmitted as a
// JSON null, while an unset leaf inherits the default during merge.
type Opt[T any] struct {
	set   bool
	null  bool
	value T
}

// Value returns an Opt holding v.
func Value[T any](v T) Opt[T] {
	return Opt[T]{set: true, value: v}
}

// Null returns an explicitly-null Opt.
func Null[T any]() Opt[T] {
	return Opt[T]{set: true, null: true}
}

// IsSet reports whether the leaf was supplied at all (value or null).
func (o Opt[T]) IsSet() bool { return o.set }

// IsNull reports whether the leaf is an explicit null.
func (o Opt[T]) IsNull() bool { return o.set && o.null }

// Get returns the value and whether a non-null value is present.
func (o Opt[T]) Get() (T, bool) {
	if !o.set || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Or returns the value, or def when unset or null.
func (o Opt[T]) Or(def T) T {
	if v, ok := o.Get(); ok {
		return v
	}
	return def
}

// MarshalJSON implements json.Marshaler. Unset marshals as null too; callers
// that need presence semantics must check IsSet before emitting the field.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null yields an explicit
// null leaf.
func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Null[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Value(v)
	return nil
}

// mergeOpt resolves a tri-state leaf against a default: a supplied user leaf
// (value or null) wins, an unset one inherits.
func mergeOpt[T any](def, user Opt[T]) Opt[T] {
	if user.IsSet() {
		return user
	}
	return def
}

// mergeList implements wholesale array replacement: a non-nil user list
// replaces the default entirely, never concatenates.
func mergeList[T any](def, user []T) []T {
	if user != nil {
		return user
	}
	return def
}
