package models

import (
	"bytes"
	"encoding/json"
)

// Nullable is a patch value for a nullable column. The zero value leaves the
// column unchanged; Set with a nil Value clears it.
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// SetTo returns a Nullable that writes v.
func SetTo[T any](v T) Nullable[T] {
	return Nullable[T]{Set: true, Value: &v}
}

// Null returns a Nullable that clears the column.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Set: true}
}

// apply writes the patch value into dst when the patch is set.
func (n Nullable[T]) apply(dst **T) {
	if !n.Set {
		return
	}
	if n.Value == nil {
		*dst = nil
		return
	}
	v := *n.Value
	*dst = &v
}

// UnmarshalJSON is only invoked for keys present in the document, which is
// what separates "absent" from an explicit null.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// IsZero lets `omitzero` drop unset patch values when encoding.
func (n Nullable[T]) IsZero() bool {
	return !n.Set
}

// MarshalJSON renders the value or null.
func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if !n.Set || n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}
