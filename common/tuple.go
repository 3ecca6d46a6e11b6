package common

import "io"

// Tuple is a fixed-length ordered sequence of Fields conforming to a
// TupleDesc, plus an optional RecordID recording where it physically
// resides. Field slots are mutable; Fields themselves are value types the
// Tuple does not own.
type Tuple struct {
	Desc   *TupleDesc
	Fields []Field
	Rid    *RecordID
}

func NewTuple(desc *TupleDesc) *Tuple {
	return &Tuple{Desc: desc, Fields: make([]Field, desc.NumFields())}
}

func (t *Tuple) SetField(i int, f Field) error {
	if i < 0 || i >= len(t.Fields) {
		return NewArgumentError("field index %d out of range [0,%d)", i, len(t.Fields))
	}
	t.Fields[i] = f
	return nil
}

func (t *Tuple) GetField(i int) (Field, error) {
	if i < 0 || i >= len(t.Fields) {
		return nil, NewArgumentError("field index %d out of range [0,%d)", i, len(t.Fields))
	}
	return t.Fields[i], nil
}

func (t *Tuple) WriteTo(w io.Writer) error {
	for _, f := range t.Fields {
		if f == nil {
			return NewArgumentError("tuple has unset field")
		}
		if err := f.WriteTo(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadTupleFrom decodes a tuple matching desc from r.
func ReadTupleFrom(r io.Reader, desc *TupleDesc) (*Tuple, error) {
	t := NewTuple(desc)
	for i, spec := range desc.Fields {
		var f Field
		var err error
		switch spec.Type {
		case IntType:
			f, err = ReadIntField(r)
		case StringType:
			f, err = ReadStringField(r)
		default:
			return nil, NewArgumentError("unknown field type %d", spec.Type)
		}
		if err != nil {
			return nil, err
		}
		t.Fields[i] = f
	}
	return t, nil
}

// Equals compares two tuples field by field; RecordIDs are not part of
// tuple identity since the same logical row may be re-read into different
// in-memory copies.
func (t *Tuple) Equals(other *Tuple) bool {
	if other == nil || !t.Desc.Equals(other.Desc) || len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		eq, err := t.Fields[i].Compare(Equals, other.Fields[i])
		if err != nil || !eq {
			return false
		}
	}
	return true
}
