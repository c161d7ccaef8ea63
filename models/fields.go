package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Optional records whether a JSON field was present, and whether it was null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns a present Optional that was sent as JSON null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Null = true
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Present reports a field that was sent with a non-null value.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// TagList accepts either a JSON array of strings or one comma-separated string.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return err
		}
		*t = SplitTags(joined)
		return nil
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*t = tags
	return nil
}

// SplitTags splits a comma-separated tag string, trimming blanks.
func SplitTags(joined string) TagList {
	tags := TagList{}
	for _, tag := range strings.Split(joined, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// OrderValue keeps the raw text of an order field, which may arrive as a number or a numeric string.
type OrderValue struct {
	raw string
}

func NewOrderValue(raw string) OrderValue {
	return OrderValue{raw: raw}
}

func (o OrderValue) Raw() string {
	return strings.TrimSpace(o.raw)
}

func (o *OrderValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("order: empty value")
	}
	switch {
	case data[0] == '"':
		return json.Unmarshal(data, &o.raw)
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		o.raw = n.String()
		return nil
	default:
		return fmt.Errorf("order: expected a number or numeric string")
	}
}

func (o OrderValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.raw)
}
