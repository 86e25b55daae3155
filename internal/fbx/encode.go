package fbx

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	headerMagic = "Kaydara FBX Binary  \x00"
	recordHead  = 13
)

var (
	nullRecord [recordHead]byte

	footID = [16]byte{
		0xfa, 0xbc, 0xab, 0x09, 0xd0, 0xc8, 0xd4, 0x66,
		0xb1, 0x76, 0xfb, 0x83, 0x1c, 0xf7, 0x26, 0x7e,
	}
	footMagic = [16]byte{
		0xf8, 0x5a, 0x8c, 0x6a, 0xde, 0xf5, 0xd9, 0x7e,
		0xec, 0xe9, 0x0c, 0xe3, 0x75, 0x8f, 0x29, 0x0b,
	}
)

type encoder struct {
	w   *bufio.Writer
	off int64
	err error
	buf [8]byte
}

// Encode writes nodes as a complete binary FBX file.
func Encode(w io.Writer, version uint32, nodes []*Node) error {
	if version < 7000 || version >= 7500 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	e := &encoder{w: bufio.NewWriter(w)}

	e.bytes([]byte(headerMagic))
	e.bytes([]byte{0x1a, 0x00})
	e.u32(version)

	for _, n := range nodes {
		if err := e.node(n); err != nil {
			return err
		}
	}
	e.bytes(nullRecord[:])
	e.footer(version)

	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

func (e *encoder) node(n *Node) error {
	if len(n.Name) > math.MaxUint8 {
		return fmt.Errorf("fbx: node name too long: %q", n.Name)
	}
	size, err := nodeSize(n)
	if err != nil {
		return err
	}

	propLen := 0
	for _, p := range n.Props {
		s, _ := propSize(p)
		propLen += s
	}

	e.u32(uint32(e.off + int64(size)))
	e.u32(uint32(len(n.Props)))
	e.u32(uint32(propLen))
	e.bytes([]byte{byte(len(n.Name))})
	e.bytes([]byte(n.Name))

	for _, p := range n.Props {
		e.prop(p)
	}
	for _, c := range n.Children {
		if err := e.node(c); err != nil {
			return err
		}
	}
	if needsSentinel(n) {
		e.bytes(nullRecord[:])
	}
	return e.err
}

// needsSentinel reports whether a null record terminates n. Readers rely
// on it to find the end of a child list, and on it to tell an empty node
// from the end of a list.
func needsSentinel(n *Node) bool {
	return len(n.Children) > 0 || len(n.Props) == 0
}

func nodeSize(n *Node) (int, error) {
	size := recordHead + len(n.Name)
	for _, p := range n.Props {
		s, err := propSize(p)
		if err != nil {
			return 0, fmt.Errorf("node %s: %w", n.Name, err)
		}
		size += s
	}
	for _, c := range n.Children {
		s, err := nodeSize(c)
		if err != nil {
			return 0, err
		}
		size += s
	}
	if needsSentinel(n) {
		size += recordHead
	}
	return size, nil
}

func propSize(p any) (int, error) {
	switch v := p.(type) {
	case int16:
		return 3, nil
	case bool:
		return 2, nil
	case int32, float32:
		return 5, nil
	case int64, float64:
		return 9, nil
	case string:
		return 5 + len(v), nil
	case []byte:
		return 5 + len(v), nil
	case []float32:
		return 13 + 4*len(v), nil
	case []float64:
		return 13 + 8*len(v), nil
	case []int64:
		return 13 + 8*len(v), nil
	case []int32:
		return 13 + 4*len(v), nil
	case []bool:
		return 13 + len(v), nil
	}
	return 0, fmt.Errorf("%w: %T", ErrBadProperty, p)
}

func (e *encoder) prop(p any) {
	switch v := p.(type) {
	case int16:
		e.code('Y')
		e.u16(uint16(v))
	case bool:
		e.code('C')
		if v {
			e.bytes([]byte{1})
		} else {
			e.bytes([]byte{0})
		}
	case int32:
		e.code('I')
		e.u32(uint32(v))
	case float32:
		e.code('F')
		e.u32(math.Float32bits(v))
	case float64:
		e.code('D')
		e.u64(math.Float64bits(v))
	case int64:
		e.code('L')
		e.u64(uint64(v))
	case string:
		e.code('S')
		e.u32(uint32(len(v)))
		e.bytes([]byte(v))
	case []byte:
		e.code('R')
		e.u32(uint32(len(v)))
		e.bytes(v)
	case []float32:
		e.arrayHead('f', len(v), 4)
		for _, x := range v {
			e.u32(math.Float32bits(x))
		}
	case []float64:
		e.arrayHead('d', len(v), 8)
		for _, x := range v {
			e.u64(math.Float64bits(x))
		}
	case []int64:
		e.arrayHead('l', len(v), 8)
		for _, x := range v {
			e.u64(uint64(x))
		}
	case []int32:
		e.arrayHead('i', len(v), 4)
		for _, x := range v {
			e.u32(uint32(x))
		}
	case []bool:
		e.arrayHead('b', len(v), 1)
		for _, x := range v {
			if x {
				e.bytes([]byte{1})
			} else {
				e.bytes([]byte{0})
			}
		}
	}
}

// arrayHead writes an uncompressed array header: count, encoding, byte length.
func (e *encoder) arrayHead(code byte, n, elem int) {
	e.code(code)
	e.u32(uint32(n))
	e.u32(0)
	e.u32(uint32(n * elem))
}

func (e *encoder) footer(version uint32) {
	e.bytes(footID[:])
	e.bytes(make([]byte, 4))

	pad := int(16 - e.off%16)
	e.bytes(make([]byte, pad))

	e.u32(version)
	e.bytes(make([]byte, 120))
	e.bytes(footMagic[:])
}

func (e *encoder) code(c byte) { e.bytes([]byte{c}) }

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.buf[:2], v)
	e.bytes(e.buf[:2])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[:4], v)
	e.bytes(e.buf[:4])
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[:8], v)
	e.bytes(e.buf[:8])
}

func (e *encoder) bytes(b []byte) {
	if e.err != nil {
		return
	}
	n, err := e.w.Write(b)
	e.off += int64(n)
	e.err = err
}
