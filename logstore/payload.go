package logstore

import (
	"errors"
	"fmt"
	"io"
	"math"

	jsoniter "github.com/json-iterator/go"
)

// ParsingFailedKey is the payload key set on records whose stored JSON could not be decoded.
const ParsingFailedKey = "parsing_failed"

// Field is one key/value pair of a Payload.
type Field struct {
	Key   string
	Value Value
}

func StringField(key, value string) Field {
	return Field{Key: key, Value: StringValue(value)}
}

func NumberField(key string, value float64) Field {
	return Field{Key: key, Value: NumberValue(value)}
}

func IntField(key string, value int64) Field {
	return Field{Key: key, Value: IntValue(value)}
}

func BoolField(key string, value bool) Field {
	return Field{Key: key, Value: BoolValue(value)}
}

// Payload is an ordered mapping of unique keys to scalar values.
//
// Insertion order is kept for display and JSON encoding, lookups ignore it.
// Payloads are small (a handful of fields), so lookups scan the field list.
type Payload struct {
	fields []Field
}

// NewPayload builds a Payload from fields in order. A repeated key replaces the earlier value in place.
func NewPayload(fields ...Field) Payload {
	p := Payload{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		p.Set(f.Key, f.Value)
	}

	return p
}

// Set adds key or replaces its value, keeping the original position.
func (p *Payload) Set(key string, value Value) {
	for i := range p.fields {
		if p.fields[i].Key == key {
			p.fields[i].Value = value
			return
		}
	}

	p.fields = append(p.fields, Field{Key: key, Value: value})
}

// Get returns the value stored under key.
func (p Payload) Get(key string) (Value, bool) {
	for _, f := range p.fields {
		if f.Key == key {
			return f.Value, true
		}
	}

	return Value{}, false
}

func (p Payload) Len() int {
	return len(p.fields)
}

// Fields returns a copy of the fields in insertion order.
func (p Payload) Fields() []Field {
	out := make([]Field, len(p.fields))
	copy(out, p.fields)

	return out
}

// Clone returns a payload that shares no memory with p.
func (p Payload) Clone() Payload {
	return Payload{fields: p.Fields()}
}

// Equal compares two payloads by content, ignoring order.
func (p Payload) Equal(other Payload) bool {
	if len(p.fields) != len(other.fields) {
		return false
	}

	for _, f := range p.fields {
		v, ok := other.Get(f.Key)
		if !ok || !v.Equal(f.Value) {
			return false
		}
	}

	return true
}

// MarshalJSON encodes the payload as a flat JSON object in insertion order.
func (p Payload) MarshalJSON() ([]byte, error) {
	stream := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowStream(nil)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, f := range p.fields {
		if i > 0 {
			stream.WriteMore()
		}

		stream.WriteObjectField(f.Key)

		switch f.Value.kind {
		case KindNumber:
			if math.IsNaN(f.Value.num) || math.IsInf(f.Value.num, 0) {
				return nil, fmt.Errorf("payload field %q: unsupported number %v", f.Key, f.Value.num)
			}
			stream.WriteFloat64(f.Value.num)
		case KindBool:
			stream.WriteBool(f.Value.b)
		default:
			stream.WriteString(f.Value.str)
		}
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}

	return append([]byte(nil), stream.Buffer()...), nil
}

// UnmarshalJSON decodes a flat JSON object of scalars, keeping document order.
// null values are skipped, nested objects and arrays are rejected.
func (p *Payload) UnmarshalJSON(data []byte) error {
	decoded, err := DecodePayload(data)
	if err != nil {
		return err
	}

	*p = decoded

	return nil
}

// DecodePayload parses payload JSON as written by MarshalJSON.
func DecodePayload(data []byte) (Payload, error) {
	iter := jsoniter.ConfigFastest.BorrowIterator(data)
	defer jsoniter.ConfigFastest.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return Payload{}, ErrInvalidPayloadJSON
	}

	decoded := Payload{fields: make([]Field, 0)}
	nested := false
	var nestedKey string

	complete := iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		switch it.WhatIsNext() {
		case jsoniter.StringValue:
			decoded.Set(key, StringValue(it.ReadString()))
		case jsoniter.NumberValue:
			decoded.Set(key, NumberValue(it.ReadFloat64()))
		case jsoniter.BoolValue:
			decoded.Set(key, BoolValue(it.ReadBool()))
		case jsoniter.NilValue:
			it.ReadNil()
		default:
			nested = true
			nestedKey = key
			return false
		}

		return true
	})

	if nested {
		return Payload{}, errors.Join(ErrInvalidPayloadJSON, fmt.Errorf("field %q is not a scalar", nestedKey))
	}

	if !complete || (iter.Error != nil && !errors.Is(iter.Error, io.EOF)) {
		return Payload{}, errors.Join(ErrInvalidPayloadJSON, iter.Error)
	}

	return decoded, nil
}

// ParsingFailedPayload is the payload substituted for stored JSON that cannot be decoded.
func ParsingFailedPayload() Payload {
	return NewPayload(BoolField(ParsingFailedKey, true))
}
