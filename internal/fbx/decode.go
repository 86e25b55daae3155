package fbx

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

type decoder struct {
	r   *bufio.Reader
	off int64
}

// Decode reads the header and node tree of a binary FBX file. The footer
// is not validated.
func Decode(r io.Reader) (*Document, error) {
	d := &decoder{r: bufio.NewReader(r)}

	head, err := d.read(len(headerMagic) + 2)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(head[:len(headerMagic)]) != headerMagic {
		return nil, ErrBadMagic
	}

	version, err := d.u32()
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version >= 7500 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	doc := &Document{Version: version}
	for {
		n, err := d.node()
		if err != nil {
			return nil, err
		}
		if n == nil {
			break
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	return doc, nil
}

// node reads one record. A null record yields (nil, nil).
func (d *decoder) node() (*Node, error) {
	start := d.off

	endOffset, err := d.u32()
	if err != nil {
		return nil, fmt.Errorf("record at %d: %w", start, err)
	}
	numProps, err := d.u32()
	if err != nil {
		return nil, err
	}
	propLen, err := d.u32()
	if err != nil {
		return nil, err
	}
	nameLen, err := d.u8()
	if err != nil {
		return nil, err
	}

	if endOffset == 0 && numProps == 0 && propLen == 0 && nameLen == 0 {
		return nil, nil
	}

	name, err := d.read(int(nameLen))
	if err != nil {
		return nil, err
	}
	n := &Node{Name: string(name), Props: make([]any, 0, numProps)}

	propsStart := d.off
	for i := uint32(0); i < numProps; i++ {
		p, err := d.prop()
		if err != nil {
			return nil, fmt.Errorf("node %s property %d: %w", n.Name, i, err)
		}
		n.Props = append(n.Props, p)
	}
	if d.off-propsStart != int64(propLen) {
		return nil, fmt.Errorf("fbx: node %s: property list is %d bytes, header says %d", n.Name, d.off-propsStart, propLen)
	}

	if d.off < int64(endOffset) {
		for {
			c, err := d.node()
			if err != nil {
				return nil, err
			}
			if c == nil {
				break
			}
			n.Children = append(n.Children, c)
		}
	}

	if d.off != int64(endOffset) {
		return nil, fmt.Errorf("fbx: node %s ends at %d, header says %d", n.Name, d.off, endOffset)
	}
	return n, nil
}

func (d *decoder) prop() (any, error) {
	code, err := d.u8()
	if err != nil {
		return nil, err
	}

	switch code {
	case 'Y':
		b, err := d.read(2)
		if err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(b)), nil
	case 'C':
		b, err := d.u8()
		return b != 0, err
	case 'I':
		v, err := d.u32()
		return int32(v), err
	case 'F':
		v, err := d.u32()
		return math.Float32frombits(v), err
	case 'D':
		v, err := d.u64()
		return math.Float64frombits(v), err
	case 'L':
		v, err := d.u64()
		return int64(v), err
	case 'S', 'R':
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		b, err := d.read(int(n))
		if err != nil {
			return nil, err
		}
		if code == 'S' {
			return string(b), nil
		}
		return b, nil
	case 'f', 'd', 'l', 'i', 'b':
		return d.array(code)
	}
	return nil, fmt.Errorf("%w: code %q", ErrBadProperty, code)
}

func (d *decoder) array(code byte) (any, error) {
	count, err := d.u32()
	if err != nil {
		return nil, err
	}
	encoding, err := d.u32()
	if err != nil {
		return nil, err
	}
	byteLen, err := d.u32()
	if err != nil {
		return nil, err
	}
	raw, err := d.read(int(byteLen))
	if err != nil {
		return nil, err
	}

	switch encoding {
	case 0:
	case 1:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("inflate array: %w", err)
		}
		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("inflate array: %w", err)
		}
	default:
		return nil, fmt.Errorf("fbx: unknown array encoding %d", encoding)
	}

	n := int(count)
	elem := map[byte]int{'f': 4, 'd': 8, 'l': 8, 'i': 4, 'b': 1}[code]
	if len(raw) != n*elem {
		return nil, fmt.Errorf("fbx: array %q of %d elements has %d bytes", code, n, len(raw))
	}

	le := binary.LittleEndian
	switch code {
	case 'f':
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(le.Uint32(raw[4*i:]))
		}
		return out, nil
	case 'd':
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(le.Uint64(raw[8*i:]))
		}
		return out, nil
	case 'l':
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(le.Uint64(raw[8*i:]))
		}
		return out, nil
	case 'i':
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(le.Uint32(raw[4*i:]))
		}
		return out, nil
	default:
		out := make([]bool, n)
		for i := range out {
			out[i] = raw[i] != 0
		}
		return out, nil
	}
}

func (d *decoder) read(n int) ([]byte, error) {
	b := make([]byte, n)
	m, err := io.ReadFull(d.r, b)
	d.off += int64(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *decoder) u8() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}
	d.off++
	return b, nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.read(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
