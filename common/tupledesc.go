package common

// FieldSpec is one (type, optional name) pair inside a TupleDesc.
type FieldSpec struct {
	Type FieldType
	Name string
}

// TupleDesc is an ordered list of (type, optional name) pairs.
type TupleDesc struct {
	Fields []FieldSpec
}

func NewTupleDesc(fields ...FieldSpec) *TupleDesc {
	return &TupleDesc{Fields: fields}
}

func (td *TupleDesc) NumFields() int { return len(td.Fields) }

// Size returns the sum of each field's on-disk byte width.
func (td *TupleDesc) Size() int {
	total := 0
	for _, f := range td.Fields {
		total += f.Type.Len()
	}
	return total
}

func (td *TupleDesc) FieldType(i int) (FieldType, error) {
	if i < 0 || i >= len(td.Fields) {
		return 0, NewArgumentError("field index %d out of range [0,%d)", i, len(td.Fields))
	}
	return td.Fields[i].Type, nil
}

// FieldIndex returns the index of the field with the given name, or an
// ArgumentError if no field carries that name.
func (td *TupleDesc) FieldIndex(name string) (int, error) {
	for i, f := range td.Fields {
		if f.Name == name {
			return i, nil
		}
	}
	return -1, NewArgumentError("no field named %q", name)
}

// Equals compares two descriptors by pairwise type equality. The source
// this engine is modeled on compared fields only up to numFields()-1,
// silently ignoring the last field; here every field is compared.
func (td *TupleDesc) Equals(other *TupleDesc) bool {
	if other == nil || len(td.Fields) != len(other.Fields) {
		return false
	}
	for i := range td.Fields {
		if td.Fields[i].Type != other.Fields[i].Type {
			return false
		}
	}
	return true
}

// Merge concatenates two descriptors field-for-field, a then b.
func Merge(a, b *TupleDesc) *TupleDesc {
	fields := make([]FieldSpec, 0, len(a.Fields)+len(b.Fields))
	fields = append(fields, a.Fields...)
	fields = append(fields, b.Fields...)
	return &TupleDesc{Fields: fields}
}
