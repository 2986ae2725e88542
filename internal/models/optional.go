package models

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes a field that was left out of a request from one
// that was sent as null and from one that carries a value.
//
// Set is true whenever the key was present in the decoded document; Valid is
// true when it was present and not null.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsNull reports whether the field was explicitly sent as null.
func (o Optional[T]) IsNull() bool {
	return o.Set && !o.Valid
}

// Ptr returns nil for an unset or null field, otherwise a pointer to a copy of the value.
func (o Optional[T]) Ptr() *T {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Valid = false
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
