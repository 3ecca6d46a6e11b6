package common

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// FieldType tags a Field's variant.
type FieldType int

const (
	IntType FieldType = iota
	StringType
)

// StringLength is the fixed on-disk width of a STRING field, matching the
// teacher's convention of padding string cells to a known size instead of
// varint-prefixing them (this engine's tuples are fixed length, unlike the
// teacher's variable-length btree cells).
const StringLength = 64

func (t FieldType) Len() int {
	switch t {
	case IntType:
		return 8
	case StringType:
		return StringLength
	default:
		return 0
	}
}

// Op is a comparison operator over two Fields of the same variant.
type Op int

const (
	Equals Op = iota
	NotEquals
	LessThan
	LessThanOrEq
	GreaterThan
	GreaterThanOrEq
)

// Field is a tagged value, variant over {INT32, fixed-length STRING}.
// Fields have value semantics: a Tuple does not own the Fields it
// references.
type Field interface {
	Type() FieldType
	Compare(op Op, other Field) (bool, error)
	WriteTo(w io.Writer) error
	String() string
}

// IntField wraps a 32-bit signed integer, stored on disk as 8 bytes to keep
// field widths compatible with the 64-bit union code shared with
// StringField's length-independent slot arithmetic in HeapPage.
type IntField struct {
	Value int32
}

func (f IntField) Type() FieldType { return IntType }

func (f IntField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(IntField)
	if !ok {
		return false, NewArgumentError("cannot compare IntField with %T", other)
	}
	switch op {
	case Equals:
		return f.Value == o.Value, nil
	case NotEquals:
		return f.Value != o.Value, nil
	case LessThan:
		return f.Value < o.Value, nil
	case LessThanOrEq:
		return f.Value <= o.Value, nil
	case GreaterThan:
		return f.Value > o.Value, nil
	case GreaterThanOrEq:
		return f.Value >= o.Value, nil
	default:
		return false, NewArgumentError("unknown op %d", op)
	}
}

func (f IntField) WriteTo(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, int64(f.Value))
}

func (f IntField) String() string { return fmt.Sprintf("%d", f.Value) }

func ReadIntField(r io.Reader) (IntField, error) {
	var v int64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: int32(v)}, nil
}

// StringField wraps a string truncated/padded to StringLength bytes.
type StringField struct {
	Value string
}

func NewStringField(v string) StringField {
	if len(v) > StringLength {
		v = v[:StringLength]
	}
	return StringField{Value: v}
}

func (f StringField) Type() FieldType { return StringType }

func (f StringField) Compare(op Op, other Field) (bool, error) {
	o, ok := other.(StringField)
	if !ok {
		return false, NewArgumentError("cannot compare StringField with %T", other)
	}
	c := strings.Compare(f.Value, o.Value)
	switch op {
	case Equals:
		return c == 0, nil
	case NotEquals:
		return c != 0, nil
	case LessThan:
		return c < 0, nil
	case LessThanOrEq:
		return c <= 0, nil
	case GreaterThan:
		return c > 0, nil
	case GreaterThanOrEq:
		return c >= 0, nil
	default:
		return false, NewArgumentError("unknown op %d", op)
	}
}

func (f StringField) WriteTo(w io.Writer) error {
	buf := make([]byte, StringLength)
	copy(buf, f.Value)
	_, err := w.Write(buf)
	return err
}

func (f StringField) String() string { return f.Value }

func ReadStringField(r io.Reader) (StringField, error) {
	buf := make([]byte, StringLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return StringField{}, err
	}
	return StringField{Value: string(bytes.TrimRight(buf, "\x00"))}, nil
}
