package track

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/posetrack/internal/device"
)

// DefaultCapacity is the number of samples reserved per device up front,
// about a minute of capture at 1 kHz.
const DefaultCapacity = 1 << 16

var ErrOutOfOrder = errors.New("track: sample older than the last appended sample")

// Sample is one timestamped pose of one device.
type Sample struct {
	TimeMs   int64
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// Sequence is the append-only sample history of one device. Timestamps
// never decrease; equal timestamps are allowed.
type Sequence struct {
	samples []Sample
}

func NewSequence(capacity int) *Sequence {
	if capacity < 0 {
		capacity = 0
	}
	return &Sequence{samples: make([]Sample, 0, capacity)}
}

func (s *Sequence) Append(sample Sample) error {
	if n := len(s.samples); n > 0 && sample.TimeMs < s.samples[n-1].TimeMs {
		return fmt.Errorf("%w: %dms after %dms", ErrOutOfOrder, sample.TimeMs, s.samples[n-1].TimeMs)
	}
	s.samples = append(s.samples, sample)
	return nil
}

func (s *Sequence) Len() int { return len(s.samples) }

// At returns the i-th sample.
func (s *Sequence) At(i int) Sample { return s.samples[i] }

// Samples exposes the backing slice. Callers must not modify it.
func (s *Sequence) Samples() []Sample { return s.samples }

// Last returns the most recent sample, if any.
func (s *Sequence) Last() (Sample, bool) {
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Span returns the first and last timestamps.
func (s *Sequence) Span() (first, last int64) {
	if len(s.samples) == 0 {
		return 0, 0
	}
	return s.samples[0].TimeMs, s.samples[len(s.samples)-1].TimeMs
}

// Set maps device ids to their sequences and iterates in insertion order.
type Set struct {
	order []device.ID
	seqs  map[device.ID]*Sequence
	cap   int
}

func NewSet(capacity int) *Set {
	return &Set{
		order: make([]device.ID, 0),
		seqs:  make(map[device.ID]*Sequence),
		cap:   capacity,
	}
}

// Add registers id with an empty sequence. Adding an id twice keeps the
// first registration and reports false.
func (s *Set) Add(id device.ID) bool {
	if _, ok := s.seqs[id]; ok {
		return false
	}
	s.order = append(s.order, id)
	s.seqs[id] = NewSequence(s.cap)
	return true
}

func (s *Set) Get(id device.ID) (*Sequence, bool) {
	seq, ok := s.seqs[id]
	return seq, ok
}

// IDs returns the ids in insertion order. Callers must not modify it.
func (s *Set) IDs() []device.ID { return s.order }

func (s *Set) Len() int { return len(s.order) }

// Each calls fn for every id in insertion order until fn returns false.
func (s *Set) Each(fn func(id device.ID, seq *Sequence) bool) {
	for _, id := range s.order {
		if !fn(id, s.seqs[id]) {
			return
		}
	}
}

// Total returns the number of samples across all sequences.
func (s *Set) Total() int {
	n := 0
	for _, seq := range s.seqs {
		n += seq.Len()
	}
	return n
}
