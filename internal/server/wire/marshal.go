package wire

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sync"
)

const tagName = "wire"

// fieldCodec reads and writes one tagged struct field.
type fieldCodec struct {
	name   string
	index  int
	encode func(w io.Writer, v reflect.Value) error
	decode func(r io.Reader, v reflect.Value) error
}

var (
	int32Type = reflect.TypeOf(int32(0))
	bytesType = reflect.TypeOf([]byte(nil))
)

func encodeVarInt(w io.Writer, v reflect.Value) error {
	_, err := WriteVarInt(w, int32(v.Int()))
	return err
}

func decodeVarInt(r io.Reader, v reflect.Value) error {
	n, _, err := ReadVarInt(r)
	v.SetInt(int64(n))
	return err
}

func encodeSVarInt(w io.Writer, v reflect.Value) error {
	_, err := WriteVarInt(w, ZigZag(int32(v.Int())))
	return err
}

func decodeSVarInt(r io.Reader, v reflect.Value) error {
	n, _, err := ReadVarInt(r)
	v.SetInt(int64(UnZigZag(n)))
	return err
}

func encodeBytes(w io.Writer, v reflect.Value) error {
	_, err := WriteByteArray(w, v.Bytes())
	return err
}

func decodeBytes(r io.Reader, v reflect.Value) error {
	b, err := ReadByteArray(r)
	v.SetBytes(b)
	return err
}

// codecFor returns the field codec for a tag, checking the field's Go type.
func codecFor(field reflect.StructField, tag string) (fieldCodec, error) {
	fc := fieldCodec{name: field.Name, index: field.Index[0]}
	if !field.IsExported() {
		return fc, fmt.Errorf("field %s: tagged field must be exported", field.Name)
	}
	want := int32Type
	switch tag {
	case "varint":
		fc.encode, fc.decode = encodeVarInt, decodeVarInt
	case "svarint":
		fc.encode, fc.decode = encodeSVarInt, decodeSVarInt
	case "bytearray":
		fc.encode, fc.decode = encodeBytes, decodeBytes
		want = bytesType
	default:
		return fc, fmt.Errorf("field %s: unknown tag %q", field.Name, tag)
	}
	if field.Type != want {
		return fc, fmt.Errorf("field %s: tag %q needs %s, got %s", field.Name, tag, want, field.Type)
	}
	return fc, nil
}

// plans caches the field list of each message type.
var plans sync.Map // reflect.Type -> []fieldCodec

func planFor(t reflect.Type) ([]fieldCodec, error) {
	if p, ok := plans.Load(t); ok {
		return p.([]fieldCodec), nil
	}
	var fields []fieldCodec
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get(tagName)
		if tag == "" || tag == "-" {
			continue
		}
		fc, err := codecFor(f, tag)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fc)
	}
	plans.Store(t, fields)
	return fields, nil
}

func structValue(m any) (reflect.Value, error) {
	v := reflect.Indirect(reflect.ValueOf(m))
	if v.Kind() != reflect.Struct {
		return v, fmt.Errorf("expected struct, got %T", m)
	}
	return v, nil
}

// Marshal encodes the wire-tagged fields of a struct in declaration order.
func Marshal(m any) ([]byte, error) {
	v, err := structValue(m)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	fields, err := planFor(v.Type())
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	var buf bytes.Buffer
	for _, f := range fields {
		if err := f.encode(&buf, v.Field(f.index)); err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", f.name, err)
		}
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into a struct pointer. Every byte must be consumed.
func Unmarshal(data []byte, m any) error {
	rv := reflect.ValueOf(m)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("unmarshal: expected non-nil pointer, got %T", m)
	}
	v, err := structValue(m)
	if err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	fields, err := planFor(v.Type())
	if err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	r := bytes.NewReader(data)
	for _, f := range fields {
		if err := f.decode(r, v.Field(f.index)); err != nil {
			return fmt.Errorf("unmarshal field %s: %w", f.name, err)
		}
	}
	if r.Len() != 0 {
		return fmt.Errorf("unmarshal: %d trailing bytes", r.Len())
	}
	return nil
}
