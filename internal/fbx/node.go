// Package fbx reads and writes the binary FBX node-record format (7.x,
// 32-bit offsets).
//
// A file is a tree of named nodes. Each node carries a list of typed
// properties and may have children. Property values are plain Go values:
//
//	int16    Y      []float32  f
//	bool     C      []float64  d
//	int32    I      []int64    l
//	float32  F      []int32    i
//	float64  D      []bool     b
//	int64    L
//	string   S
//	[]byte   R
package fbx

import (
	"errors"
	"fmt"
)

// Version is the file version written by default (FBX 2014/2015).
const Version uint32 = 7400

var (
	ErrBadMagic           = errors.New("fbx: not a binary FBX file")
	ErrUnsupportedVersion = errors.New("fbx: unsupported version")
	ErrBadProperty        = errors.New("fbx: unsupported property type")
)

type Node struct {
	Name     string
	Props    []any
	Children []*Node
}

func NewNode(name string, props ...any) *Node {
	return &Node{Name: name, Props: props}
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Child returns the first direct child with the given name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Prop returns property i, or nil when out of range.
func (n *Node) Prop(i int) any {
	if i < 0 || i >= len(n.Props) {
		return nil
	}
	return n.Props[i]
}

func (n *Node) String() string {
	return fmt.Sprintf("%s(%d props, %d children)", n.Name, len(n.Props), len(n.Children))
}

// Document is a decoded file.
type Document struct {
	Version uint32
	Nodes   []*Node
}

// Find returns the first top-level node with the given name.
func (d *Document) Find(name string) *Node {
	for _, n := range d.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}
