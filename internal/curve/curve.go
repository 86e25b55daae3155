// Package curve turns recorded pose sequences into keyframed translation
// and rotation channels and feeds them to a scene sink.
package curve

import (
	"fmt"

	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/orientation"
	"github.com/san-kum/posetrack/internal/track"
)

const (
	TranslationChannel = "Lcl Translation"
	RotationChannel    = "Lcl Rotation"
)

// Key is one control point of a curve.
type Key struct {
	TimeMs int64
	Value  float64
}

type Curve []Key

// Times returns the key times in milliseconds.
func (c Curve) Times() []int64 {
	out := make([]int64, len(c))
	for i, k := range c {
		out[i] = k.TimeMs
	}
	return out
}

func (c Curve) Values() []float64 {
	out := make([]float64, len(c))
	for i, k := range c {
		out[i] = k.Value
	}
	return out
}

// Channel groups the X, Y and Z curves of one animated property.
type Channel struct {
	Name    string
	X, Y, Z Curve
}

// Len is the number of keys per axis.
func (ch Channel) Len() int { return len(ch.X) }

// Sink receives the curves of each track and writes them out.
type Sink interface {
	WriteObjectCurves(name string, translation, rotation Channel) error
	Finalize() error
}

// Build converts a sequence into translation (metres) and rotation
// (Euler degrees) channels with one key per sample on every axis.
func Build(seq *track.Sequence) (translation, rotation Channel) {
	n := seq.Len()
	translation = newChannel(TranslationChannel, n)
	rotation = newChannel(RotationChannel, n)

	for _, s := range seq.Samples() {
		translation.add(s.TimeMs, s.Position.X(), s.Position.Y(), s.Position.Z())

		e := orientation.QuaternionToEulerDegrees(s.Rotation)
		rotation.add(s.TimeMs, e.Roll, e.Pitch, e.Yaw)
	}
	return translation, rotation
}

func newChannel(name string, n int) Channel {
	return Channel{
		Name: name,
		X:    make(Curve, 0, n),
		Y:    make(Curve, 0, n),
		Z:    make(Curve, 0, n),
	}
}

func (ch *Channel) add(ms int64, x, y, z float64) {
	ch.X = append(ch.X, Key{ms, x})
	ch.Y = append(ch.Y, Key{ms, y})
	ch.Z = append(ch.Z, Key{ms, z})
}

// TrackName is the display name of a recorded device.
func TrackName(name string, id device.ID) string {
	return fmt.Sprintf("%s - %d", name, id)
}

// Emit writes one track per sequence in set order and then finalizes the
// sink exactly once. names supplies the device name used in the track
// name; a nil names falls back to "Device". The sink is not finalized if
// a track fails to write.
func Emit(sink Sink, set *track.Set, names func(device.ID) string) (int, error) {
	written := 0
	var err error

	set.Each(func(id device.ID, seq *track.Sequence) bool {
		name := "Device"
		if names != nil {
			name = names(id)
		}

		t, r := Build(seq)
		if werr := sink.WriteObjectCurves(TrackName(name, id), t, r); werr != nil {
			err = fmt.Errorf("write track for device %d: %w", id, werr)
			return false
		}
		written++
		return true
	})
	if err != nil {
		return written, err
	}

	if err := sink.Finalize(); err != nil {
		return written, fmt.Errorf("finalize: %w", err)
	}
	return written, nil
}
