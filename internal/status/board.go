package status

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/track"
)

const historyLen = 48

// Device is the latest known state of one recorded device.
type Device struct {
	ID       device.ID
	Name     string
	Class    device.Class
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Samples  int
	Drops    int
	LastMs   int64
	Valid    bool
	// Height holds recent Y positions, oldest first.
	Height []float64
}

type Snapshot struct {
	ElapsedMs int64
	Ticks     int
	Notice    string
	Devices   []Device
}

// Board is a capture observer that keeps the latest per-device state for
// renderers running on other goroutines.
type Board struct {
	mu      sync.Mutex
	order   []device.ID
	devices map[device.ID]*Device
	elapsed int64
	ticks   int
	notice  string
}

func NewBoard(descs []device.Descriptor) *Board {
	b := &Board{devices: make(map[device.ID]*Device, len(descs))}
	for _, d := range descs {
		b.order = append(b.order, d.ID)
		b.devices[d.ID] = &Device{
			ID:       d.ID,
			Name:     d.Name,
			Class:    d.Class,
			Rotation: mgl64.QuatIdent(),
			Height:   make([]float64, 0, 2*historyLen),
		}
	}
	return b
}

func (b *Board) OnTick(ms int64) {
	b.mu.Lock()
	b.elapsed = ms
	b.ticks++
	b.mu.Unlock()
}

func (b *Board) OnSample(id device.ID, s track.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.devices[id]
	if !ok {
		return
	}
	d.Position = s.Position
	d.Rotation = s.Rotation
	d.LastMs = s.TimeMs
	d.Samples++
	d.Valid = true

	d.Height = append(d.Height, s.Position.Y())
	if len(d.Height) >= 2*historyLen {
		d.Height = append(d.Height[:0], d.Height[len(d.Height)-historyLen:]...)
	}
}

func (b *Board) OnDrop(id device.ID, ms int64, reason error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d, ok := b.devices[id]; ok {
		d.Drops++
		d.Valid = false
	}
	b.notice = fmt.Sprintf("device %d at %dms: %v", id, ms, reason)
}

// Notice sets the message line shown under the device table.
func (b *Board) Notice(msg string) {
	b.mu.Lock()
	b.notice = msg
	b.mu.Unlock()
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		ElapsedMs: b.elapsed,
		Ticks:     b.ticks,
		Notice:    b.notice,
		Devices:   make([]Device, 0, len(b.order)),
	}
	for _, id := range b.order {
		d := *b.devices[id]
		h := d.Height
		if len(h) > historyLen {
			h = h[len(h)-historyLen:]
		}
		d.Height = append([]float64(nil), h...)
		s.Devices = append(s.Devices, d)
	}
	return s
}
