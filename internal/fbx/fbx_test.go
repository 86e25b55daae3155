package fbx

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() []*Node {
	curve := NewNode("AnimationCurve", int64(42), "AnimCurve::\x00\x01AnimCurve", "").Add(
		NewNode("Default", float64(0)),
		NewNode("KeyVer", int32(4009)),
		NewNode("KeyTime", []int64{0, 739018528, 1524225714}),
		NewNode("KeyValueFloat", []float32{0, 1.5, 2}),
		NewNode("KeyAttrFlags", []int32{0x108}),
		NewNode("KeyAttrDataFloat", []float32{0, 0, 9.419963346924634e-30, 0}),
	)

	return []*Node{
		NewNode("FBXHeaderExtension").Add(
			NewNode("FBXHeaderVersion", int32(1003)),
			NewNode("Flags", int16(-3), true, []bool{true, false}),
		),
		NewNode("FileId", []byte{1, 2, 3, 4}),
		NewNode("Objects").Add(curve),
		NewNode("Mixed", float32(0.25), []float64{math.Pi, -1}, "text"),
		NewNode("Empty"),
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Version, sampleTree()))

	doc, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, Version, doc.Version)
	require.Len(t, doc.Nodes, 5)

	ext := doc.Find("FBXHeaderExtension")
	require.NotNil(t, ext)
	assert.Equal(t, int32(1003), ext.Child("FBXHeaderVersion").Prop(0))
	flags := ext.Child("Flags")
	assert.Equal(t, int16(-3), flags.Prop(0))
	assert.Equal(t, true, flags.Prop(1))
	assert.Equal(t, []bool{true, false}, flags.Prop(2))

	assert.Equal(t, []byte{1, 2, 3, 4}, doc.Find("FileId").Prop(0))

	curve := doc.Find("Objects").Child("AnimationCurve")
	require.NotNil(t, curve)
	assert.Equal(t, int64(42), curve.Prop(0))
	assert.Equal(t, "AnimCurve::\x00\x01AnimCurve", curve.Prop(1))
	assert.Equal(t, "", curve.Prop(2))
	assert.Equal(t, []int64{0, 739018528, 1524225714}, curve.Child("KeyTime").Prop(0))
	assert.Equal(t, []float32{0, 1.5, 2}, curve.Child("KeyValueFloat").Prop(0))
	assert.Equal(t, []int32{0x108}, curve.Child("KeyAttrFlags").Prop(0))

	mixed := doc.Find("Mixed")
	assert.Equal(t, float32(0.25), mixed.Prop(0))
	assert.Equal(t, []float64{math.Pi, -1}, mixed.Prop(1))
	assert.Equal(t, "text", mixed.Prop(2))
	assert.Nil(t, mixed.Prop(3))

	empty := doc.Find("Empty")
	require.NotNil(t, empty)
	assert.Empty(t, empty.Props)
	assert.Empty(t, empty.Children)
}

func TestHeaderAndFooter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Version, sampleTree()))
	b := buf.Bytes()

	assert.Equal(t, "Kaydara FBX Binary  \x00\x1a\x00", string(b[:23]))
	assert.Equal(t, Version, binary.LittleEndian.Uint32(b[23:27]))

	require.Greater(t, len(b), 160)
	assert.Equal(t, footMagic[:], b[len(b)-16:])
	assert.Equal(t, make([]byte, 120), b[len(b)-136:len(b)-16])
	assert.Equal(t, Version, binary.LittleEndian.Uint32(b[len(b)-140:len(b)-136]))
	assert.Zero(t, (len(b)-140)%16, "footer version must be 16-byte aligned")

	idx := bytes.Index(b, footID[:])
	require.Positive(t, idx)
	assert.Equal(t, make([]byte, recordHead), b[idx-recordHead:idx], "top-level list ends with a null record")
}

func TestEncodeEmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Version, nil))

	doc, err := Decode(&buf)
	require.NoError(t, err)
	assert.Empty(t, doc.Nodes)
}

func TestEncodeErrors(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, 7500, nil)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	err = Encode(&buf, Version, []*Node{NewNode("Bad", struct{}{})})
	assert.ErrorIs(t, err, ErrBadProperty)

	err = Encode(&buf, Version, []*Node{NewNode("Nested").Add(NewNode("Bad", uint8(1)))})
	assert.ErrorIs(t, err, ErrBadProperty)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("; FBX 7.4.0 project file\n")))
	assert.True(t, errors.Is(err, ErrBadMagic))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Version, sampleTree()))
	truncated := buf.Bytes()[:60]
	_, err = Decode(bytes.NewReader(truncated))
	assert.Error(t, err)
}

func TestDecodeCompressedArray(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}

	var z bytes.Buffer
	zw := zlib.NewWriter(&z)
	_, err := zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var prop bytes.Buffer
	prop.WriteByte('d')
	for _, v := range []uint32{uint32(len(values)), 1, uint32(z.Len())} {
		_ = binary.Write(&prop, binary.LittleEndian, v)
	}
	prop.Write(z.Bytes())

	d := &decoder{r: bufio.NewReader(&prop)}
	got, err := d.prop()
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func BenchmarkEncode(b *testing.B) {
	keys := make([]int64, 10000)
	vals := make([]float32, 10000)
	nodes := []*Node{NewNode("Objects").Add(
		NewNode("AnimationCurve", int64(1), "c", "").Add(
			NewNode("KeyTime", keys),
			NewNode("KeyValueFloat", vals),
		),
	)}

	var buf bytes.Buffer
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := Encode(&buf, Version, nodes); err != nil {
			b.Fatal(err)
		}
	}
}
