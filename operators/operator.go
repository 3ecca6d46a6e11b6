// Package operators implements the pull-based relational operator
// pipeline: every node exposes Open/Close/Rewind/HasNext/Next, composing
// freely regardless of what its children are. Grounded on the teacher's
// iterator style (btree/iterator.go's seek-then-Next pattern), generalized
// from a single key-range B-tree scan to the full operator family a query
// plan needs: scans, filter, join, aggregate, insert/delete, and sort.
package operators

import (
	"github.com/intellect4all/reldb/common"
)

// Operator is the capability every pipeline node implements.
type Operator interface {
	Open() error
	Close() error
	Rewind() error
	HasNext() (bool, error)
	Next() (*common.Tuple, error)
	TupleDesc() *common.TupleDesc
	Children() []Operator
	SetChildren(children []Operator)
}

// leaf is embedded by operators with no children (the scans).
type leaf struct{}

func (leaf) Children() []Operator          { return nil }
func (leaf) SetChildren(children []Operator) {}

// unary is embedded by operators with exactly one child.
type unary struct {
	child Operator
}

func (u *unary) Children() []Operator { return []Operator{u.child} }
func (u *unary) SetChildren(children []Operator) {
	if len(children) > 0 {
		u.child = children[0]
	}
}

// binary is embedded by operators with exactly two children.
type binary struct {
	left, right Operator
}

func (b *binary) Children() []Operator { return []Operator{b.left, b.right} }
func (b *binary) SetChildren(children []Operator) {
	if len(children) > 0 {
		b.left = children[0]
	}
	if len(children) > 1 {
		b.right = children[1]
	}
}
