package status

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/track"
)

func testBoard() *Board {
	return NewBoard([]device.Descriptor{
		{ID: 0, Class: device.ClassHMD, Name: "Vive MV"},
		{ID: 3, Class: device.ClassController, Name: "Vive Controller MV"},
	})
}

func TestBoardTracksSamplesAndDrops(t *testing.T) {
	b := testBoard()

	b.OnSample(0, track.Sample{TimeMs: 16, Position: mgl64.Vec3{0, 1.7, 0}, Rotation: mgl64.QuatIdent()})
	b.OnDrop(3, 16, errors.New("pose not valid"))
	b.OnTick(16)
	b.OnSample(42, track.Sample{TimeMs: 16})

	snap := b.Snapshot()
	assert.Equal(t, int64(16), snap.ElapsedMs)
	assert.Equal(t, 1, snap.Ticks)
	assert.Contains(t, snap.Notice, "device 3")

	require.Len(t, snap.Devices, 2)
	hmd, ctrl := snap.Devices[0], snap.Devices[1]
	assert.Equal(t, 1, hmd.Samples)
	assert.True(t, hmd.Valid)
	assert.Equal(t, mgl64.Vec3{0, 1.7, 0}, hmd.Position)
	assert.Equal(t, []float64{1.7}, hmd.Height)
	assert.Equal(t, 1, ctrl.Drops)
	assert.False(t, ctrl.Valid)
}

func TestBoardHistoryBounded(t *testing.T) {
	b := testBoard()
	for i := 0; i < 5*historyLen; i++ {
		b.OnSample(0, track.Sample{TimeMs: int64(i), Position: mgl64.Vec3{0, float64(i), 0}})
	}

	h := b.Snapshot().Devices[0].Height
	require.Len(t, h, historyLen)
	assert.Equal(t, float64(5*historyLen-1), h[len(h)-1])
	assert.Equal(t, float64(5*historyLen-historyLen), h[0])
}

func TestSnapshotIsACopy(t *testing.T) {
	b := testBoard()
	b.OnSample(0, track.Sample{Position: mgl64.Vec3{0, 1, 0}})

	snap := b.Snapshot()
	snap.Devices[0].Height[0] = 99

	assert.Equal(t, 1.0, b.Snapshot().Devices[0].Height[0])
}

func TestPrinterRedrawsInPlace(t *testing.T) {
	var out bytes.Buffer
	b := testBoard()
	p := NewPrinter(&out, b, 30)

	p.Render()
	first := out.String()
	assert.Contains(t, first, "Vive Controller MV")
	assert.NotContains(t, first, "\033[4A")

	out.Reset()
	b.OnTick(500)
	p.Render()
	second := out.String()
	assert.True(t, strings.HasPrefix(second, "\033[4A"), "second frame moves the cursor back over the first")
	assert.Contains(t, second, "t=0.500s")
}

func TestPrinterRunStopsOnDone(t *testing.T) {
	var out bytes.Buffer
	done := make(chan struct{})
	close(done)

	NewPrinter(&out, testBoard(), 0).Run(context.Background(), done)

	s := out.String()
	assert.True(t, strings.HasPrefix(s, hideCursor))
	assert.True(t, strings.HasSuffix(s, showCursor))
}

func TestModelKeyStops(t *testing.T) {
	stops := 0
	m := newModel("posetrack", testBoard(), func() { stops++ }, 20)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	require.NotNil(t, cmd)
	assert.Equal(t, 1, stops)
	assert.True(t, next.(model).stopping)

	next.(model).Update(tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, 1, stops, "stop is called once")
}

func TestModelView(t *testing.T) {
	b := testBoard()
	b.OnSample(0, track.Sample{TimeMs: 10, Position: mgl64.Vec3{0, 1.7, 0}, Rotation: mgl64.QuatIdent()})
	b.OnTick(10)

	m := newModel("posetrack", b, nil, 20)
	next, _ := m.Update(tickMsg{})
	view := next.(model).View()

	assert.Contains(t, view, "posetrack")
	assert.Contains(t, view, "Vive MV")
	assert.Contains(t, view, "press any key")

	done, cmd := next.Update(doneMsg{})
	assert.NotNil(t, cmd)
	assert.True(t, done.(model).stopping)
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", Sparkline(nil, 10))
	assert.Equal(t, "▁█", Sparkline([]float64{0, 1}, 10))
	assert.Equal(t, "▁▁▁", Sparkline([]float64{2, 2, 2}, 3))
	assert.Len(t, []rune(Sparkline(make([]float64, 100), 8)), 8)
}
