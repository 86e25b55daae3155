package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/san-kum/posetrack/internal/clock"
	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/orientation"
	"github.com/san-kum/posetrack/internal/track"
)

var (
	ErrInvalidPose = errors.New("capture: pose not valid")
	ErrNotIdle     = errors.New("capture: loop already started")
)

type State int32

const (
	StateIdle State = iota
	StateRecording
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Observer receives per-tick callbacks from the loop goroutine.
// Implementations must return quickly and never block.
type Observer interface {
	OnTick(ms int64)
	OnSample(id device.ID, s track.Sample)
	OnDrop(id device.ID, ms int64, reason error)
}

type Stats struct {
	Ticks   int
	Samples int
	Drops   int
	LastMs  int64
}

type Option func(*Loop)

// WithTickInterval paces ticks. Zero polls as fast as possible.
func WithTickInterval(d time.Duration) Option {
	return func(l *Loop) { l.tickInterval = d }
}

// WithMaxDuration ends the recording once a tick timestamp reaches d.
func WithMaxDuration(d time.Duration) Option {
	return func(l *Loop) { l.maxDuration = d }
}

func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// Loop samples every id of a track.Set once per tick against one shared
// timestamp.
type Loop struct {
	src  device.Poser
	clk  clock.Clock
	ids  []device.ID
	seqs []*track.Sequence

	observers    []Observer
	tickInterval time.Duration
	maxDuration  time.Duration

	state atomic.Int32
	stats Stats
}

func New(src device.Poser, clk clock.Clock, set *track.Set, opts ...Option) *Loop {
	l := &Loop{
		src:       src,
		clk:       clk,
		observers: make([]Observer, 0),
	}

	for _, id := range set.IDs() {
		seq, _ := set.Get(id)
		l.ids = append(l.ids, id)
		l.seqs = append(l.seqs, seq)
	}

	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) AddObserver(o Observer) { l.observers = append(l.observers, o) }

func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) Stats() Stats { return l.stats }

// Tick queries every selected device once. A device without a valid pose
// is skipped for this tick; the others are still sampled.
func (l *Loop) Tick() {
	now := l.clk.ElapsedMs()

	for i, id := range l.ids {
		pose, ok := l.src.QueryPose(id)
		if !ok {
			l.drop(id, now, ErrInvalidPose)
			continue
		}

		s := track.Sample{
			TimeMs:   now,
			Position: orientation.Position(pose.Transform),
			Rotation: orientation.MatrixToQuaternion(orientation.Rotation(pose.Transform)),
		}
		if err := l.seqs[i].Append(s); err != nil {
			l.drop(id, now, err)
			continue
		}

		l.stats.Samples++
		for _, obs := range l.observers {
			obs.OnSample(id, s)
		}
	}

	l.stats.Ticks++
	l.stats.LastMs = now
	for _, obs := range l.observers {
		obs.OnTick(now)
	}
}

func (l *Loop) drop(id device.ID, ms int64, reason error) {
	l.stats.Drops++
	for _, obs := range l.observers {
		obs.OnDrop(id, ms, reason)
	}
}

// Run starts the clock and ticks until stop fires, ctx is done or the
// maximum duration is reached. stop is only checked between ticks. A nil
// stop channel never fires.
func (l *Loop) Run(ctx context.Context, stop <-chan struct{}) (Stats, error) {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRecording)) {
		return l.stats, ErrNotIdle
	}
	defer l.state.Store(int32(StateStopped))

	var pace <-chan time.Time
	if l.tickInterval > 0 {
		ticker := time.NewTicker(l.tickInterval)
		defer ticker.Stop()
		pace = ticker.C
	}
	maxMs := l.maxDuration.Milliseconds()

	l.clk.Start()

	for {
		select {
		case <-stop:
			return l.stats, nil
		case <-ctx.Done():
			return l.stats, ctx.Err()
		default:
		}

		l.Tick()

		if maxMs > 0 && l.stats.LastMs >= maxMs {
			return l.stats, nil
		}

		if pace != nil {
			select {
			case <-pace:
			case <-stop:
				return l.stats, nil
			case <-ctx.Done():
				return l.stats, ctx.Err()
			}
		}
	}
}
