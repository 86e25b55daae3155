package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/san-kum/posetrack/internal/capture"
	"github.com/san-kum/posetrack/internal/clock"
	"github.com/san-kum/posetrack/internal/curve"
	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/scene"
	"github.com/san-kum/posetrack/internal/track"
)

// Opener starts the device runtime.
type Opener func(ctx context.Context) (device.Runtime, error)

type Options struct {
	Output string
	// Devices lists the ids to record in order. Empty records every
	// eligible device in ascending id order.
	Devices  []int
	Capacity int
	Warmup   time.Duration
	Clock    clock.Clock
	// Status receives setup messages. Nil discards them.
	Status io.Writer
	Scene  []scene.Option
	Loop   []capture.Option
}

// Session owns the device runtime and the output file for one recording.
// Close must be called on every path once Setup has succeeded.
type Session struct {
	rt       device.Runtime
	out      io.Writer
	descs    map[device.ID]device.Descriptor
	selected []device.Descriptor
	warnings []Warning
	set      *track.Set
	clk      clock.Clock
	sink     *scene.Writer
	loopOpts []capture.Option
	stats    capture.Stats
	closed   bool
}

// Setup opens the runtime, waits for it to settle, selects the devices to
// record and creates the output file. On error nothing is left open.
func Setup(ctx context.Context, open Opener, opts Options) (*Session, error) {
	if opts.Output == "" {
		return nil, &SetupError{Step: "parse arguments", Kind: ErrNoOutput}
	}
	out := opts.Status
	if out == nil {
		out = io.Discard
	}

	rt, err := open(ctx)
	if err != nil {
		return nil, &SetupError{Step: "open device runtime", Kind: ErrRuntimeInit, Err: err}
	}

	s := &Session{rt: rt, out: out, clk: opts.Clock, loopOpts: opts.Loop}
	if s.clk == nil {
		s.clk = clock.NewMonotonic()
	}

	if opts.Warmup > 0 {
		t := time.NewTimer(opts.Warmup)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			rt.Close()
			return nil, ctx.Err()
		}
	}

	s.descs = rt.ListDevices()
	s.printConnected()
	s.selectDevices(opts.Devices)

	s.sink, err = scene.Create(opts.Output, opts.Scene...)
	if err != nil {
		rt.Close()
		return nil, &SetupError{Step: "create output", Kind: ErrSinkUnavailable, Err: err}
	}

	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = track.DefaultCapacity
	}
	s.set = track.NewSet(capacity)
	for _, d := range s.selected {
		s.set.Add(d.ID)
		fmt.Fprintf(out, "Recording %d: %s\n", d.ID, d.Name)
	}
	return s, nil
}

func (s *Session) printConnected() {
	for _, id := range device.SortedIDs(s.descs) {
		if !s.rt.IsConnected(id) {
			continue
		}
		switch s.descs[id].Class {
		case device.ClassHMD:
			fmt.Fprintf(s.out, "HMD connected on %d\n", id)
		case device.ClassGenericTracker:
			fmt.Fprintf(s.out, "Tracker connected on %d\n", id)
		case device.ClassController:
			fmt.Fprintf(s.out, "Controller connected on %d\n", id)
		}
	}
}

func (s *Session) selectDevices(requested []int) {
	if len(requested) == 0 {
		fmt.Fprintln(s.out, "No device list specified, recording all devices")
		for _, id := range device.SortedIDs(s.descs) {
			if d := s.descs[id]; d.Class.Recordable() {
				s.selected = append(s.selected, d)
			}
		}
		return
	}

	seen := make(map[device.ID]bool, len(requested))
	for _, raw := range requested {
		id := device.ID(raw)
		var w *Warning

		d, known := s.descs[id]
		switch {
		case seen[id]:
			w = &Warning{Kind: WarnDuplicateDevice, ID: id}
		case known && d.Class.Recordable():
			seen[id] = true
			s.selected = append(s.selected, d)
		case known:
			w = &Warning{Kind: WarnIneligibleDevice, ID: id, Class: d.Class}
		default:
			if class := s.rt.ClassOf(id); class != device.ClassInvalid {
				w = &Warning{Kind: WarnIneligibleDevice, ID: id, Class: class}
			} else {
				w = &Warning{Kind: WarnUnknownDevice, ID: id}
			}
		}

		if w != nil {
			s.warnings = append(s.warnings, *w)
			fmt.Fprintln(s.out, w.String())
		}
	}
}

// Record runs the capture loop until stop fires, ctx ends or the loop's
// maximum duration is reached. Context cancellation counts as a normal
// stop so the samples taken so far are kept.
func (s *Session) Record(ctx context.Context, stop <-chan struct{}, observers ...capture.Observer) (capture.Stats, error) {
	opts := append([]capture.Option(nil), s.loopOpts...)
	for _, o := range observers {
		opts = append(opts, capture.WithObserver(o))
	}

	loop := capture.New(s.rt, s.clk, s.set, opts...)
	stats, err := loop.Run(ctx, stop)
	s.stats = stats
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return stats, fmt.Errorf("record: %w", err)
	}
	return stats, nil
}

// Emit writes one track per selected device and finalizes the output.
func (s *Session) Emit() (int, error) {
	n, err := curve.Emit(s.sink, s.set, func(id device.ID) string {
		return s.descs[id].Name
	})
	if err != nil {
		return n, fmt.Errorf("emit %s: %w", s.sink.Path(), err)
	}
	return n, nil
}

// Close removes the output file if it was never finalized and releases
// the device runtime. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	derr := s.sink.Discard()
	rerr := s.rt.Close()
	return errors.Join(derr, rerr)
}

func (s *Session) Selected() []device.Descriptor { return s.selected }

func (s *Session) Warnings() []Warning { return s.warnings }

func (s *Session) Set() *track.Set { return s.set }

// Descriptors returns every recordable device the runtime reported.
func (s *Session) Descriptors() map[device.ID]device.Descriptor { return s.descs }

func (s *Session) Stats() capture.Stats { return s.stats }

func (s *Session) Output() string { return s.sink.Path() }

// ListDevices prints every device the source knows about, one per line.
func ListDevices(w io.Writer, src device.Source) {
	devs := src.ListDevices()
	fmt.Fprintln(w, "VR tracked devices:")
	for _, id := range device.SortedIDs(devs) {
		d := devs[id]
		state := "not connected"
		if src.IsConnected(id) {
			state = "connected"
		}
		fmt.Fprintf(w, "Device %d (%s) %s - %s\n", d.ID, d.Name, state, d.Class)
	}
}
