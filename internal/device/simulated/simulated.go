package simulated

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/posetrack/internal/config"
	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/orientation"
)

type motion func(t float64) (mgl64.Vec3, mgl64.Quat)

type simDevice struct {
	desc      device.Descriptor
	connected bool
	move      motion
}

// Runtime is an in-process device rig whose poses are smooth functions of
// time since Open.
type Runtime struct {
	devices map[device.ID]*simDevice
	dropout float64
	rng     *rand.Rand
	now     func() float64
	closed  bool
}

type Option func(*Runtime)

// WithTime replaces the time source (seconds since start).
func WithTime(now func() float64) Option {
	return func(r *Runtime) { r.now = now }
}

func New(devs []config.SimDevice, dropout float64, seed int64, opts ...Option) (*Runtime, error) {
	start := time.Now()
	r := &Runtime{
		devices: make(map[device.ID]*simDevice, len(devs)),
		dropout: dropout,
		rng:     rand.New(rand.NewSource(seed)),
		now:     func() float64 { return time.Since(start).Seconds() },
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, d := range devs {
		class, ok := device.ParseClass(d.Class)
		if !ok {
			return nil, fmt.Errorf("simulated device %d: unknown class %q", d.ID, d.Class)
		}
		id := device.ID(d.ID)
		if _, dup := r.devices[id]; dup {
			return nil, fmt.Errorf("simulated device %d: duplicate id", d.ID)
		}
		move, err := newMotion(d)
		if err != nil {
			return nil, fmt.Errorf("simulated device %d: %w", d.ID, err)
		}
		r.devices[id] = &simDevice{
			desc:      device.Descriptor{ID: id, Class: class, Name: d.Name},
			connected: !d.Disconnected,
			move:      move,
		}
	}
	return r, nil
}

// Open builds a runtime from the simulated section of cfg.
func Open(cfg *config.Config) (device.Runtime, error) {
	return New(cfg.SimulatedDevices(), cfg.Simulated.Dropout, cfg.Simulated.Seed)
}

func (r *Runtime) ListDevices() map[device.ID]device.Descriptor {
	out := make(map[device.ID]device.Descriptor)
	for id, d := range r.devices {
		if d.desc.Class.Recordable() {
			out[id] = d.desc
		}
	}
	return out
}

func (r *Runtime) IsConnected(id device.ID) bool {
	d, ok := r.devices[id]
	return ok && d.connected
}

func (r *Runtime) ClassOf(id device.ID) device.Class {
	d, ok := r.devices[id]
	if !ok {
		return device.ClassInvalid
	}
	return d.desc.Class
}

func (r *Runtime) QueryPose(id device.ID) (device.Pose, bool) {
	d, ok := r.devices[id]
	if !ok || !d.connected || r.closed {
		return device.Pose{}, false
	}
	if r.dropout > 0 && r.rng.Float64() < r.dropout {
		return device.Pose{}, false
	}
	pos, rot := d.move(r.now())
	return device.Pose{Transform: orientation.Transform(rot, pos)}, true
}

func (r *Runtime) Close() error {
	r.closed = true
	return nil
}

func newMotion(d config.SimDevice) (motion, error) {
	center := mgl64.Vec3{d.Center[0], d.Center[1], d.Center[2]}
	radius, speed := d.Radius, d.Speed

	switch d.Motion {
	case "", "static":
		return func(float64) (mgl64.Vec3, mgl64.Quat) {
			return center, mgl64.QuatIdent()
		}, nil

	case "sway":
		return func(t float64) (mgl64.Vec3, mgl64.Quat) {
			w := speed * t
			pos := center.Add(mgl64.Vec3{radius * math.Sin(w), 0, radius * math.Sin(0.7*w)})
			rot := mgl64.AnglesToQuat(
				mgl64.DegToRad(15*math.Cos(0.7*w)),
				mgl64.DegToRad(20*math.Sin(w)),
				0,
				mgl64.XYZ,
			)
			return pos, rot
		}, nil

	case "orbit":
		return func(t float64) (mgl64.Vec3, mgl64.Quat) {
			w := speed * t
			pos := center.Add(mgl64.Vec3{radius * math.Cos(w), 0.1 * math.Sin(2*w), radius * math.Sin(w)})
			rot := mgl64.QuatRotate(-w, mgl64.Vec3{0, 1, 0})
			return pos, rot
		}, nil

	case "walk":
		return func(t float64) (mgl64.Vec3, mgl64.Quat) {
			stride := speed * t
			pos := center.Add(mgl64.Vec3{
				0.05 * math.Sin(2*math.Pi*stride),
				0.03 * math.Abs(math.Sin(2*math.Pi*stride)),
				-radius * stride,
			})
			rot := mgl64.QuatRotate(mgl64.DegToRad(8*math.Sin(2*math.Pi*stride)), mgl64.Vec3{1, 0, 0})
			return pos, rot
		}, nil
	}
	return nil, fmt.Errorf("unknown motion %q", d.Motion)
}
