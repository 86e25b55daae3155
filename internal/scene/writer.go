// Package scene writes recorded tracks as an animated FBX scene and reads
// such scenes back.
//
// Each track becomes a Null model with its own animation stack and layer.
// Translation and rotation curve nodes drive the model's Lcl Translation
// and Lcl Rotation properties. The scene unit is metres and the time mode
// is 1000 fps, so every key sits on a whole millisecond.
package scene

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/posetrack/internal/curve"
	"github.com/san-kum/posetrack/internal/fbx"
)

// KTimePerMs is the number of FBX time ticks in one millisecond.
const KTimePerMs int64 = 46186158

const (
	timeModeFrames1000 int32 = 12
	unitScaleMetres          = 100.0
	keyVersion         int32 = 4009
	// cubic interpolation, auto tangents
	keyAttrFlags int32 = 0x108
)

var keyAttrData = []float32{0, 0, 9.419963346924634e-30, 0}

var (
	ErrFinalized = errors.New("scene: writer already finalized")
	ErrClosed    = errors.New("scene: writer discarded")
)

type Option func(*Writer)

func WithCreator(creator string) Option {
	return func(w *Writer) { w.creator = creator }
}

func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

func WithFileID(id uuid.UUID) Option {
	return func(w *Writer) { w.fileID = id }
}

type trackData struct {
	name        string
	translation curve.Channel
	rotation    curve.Channel
}

// Writer collects tracks and encodes the scene on Finalize. The output
// file is created by Create so an unwritable path fails before recording.
type Writer struct {
	path    string
	f       *os.File
	creator string
	now     func() time.Time
	fileID  uuid.UUID
	tracks  []trackData

	finalized bool
	closed    bool
}

func Create(path string, opts ...Option) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create scene %s: %w", path, err)
	}

	w := &Writer{
		path:    path,
		f:       f,
		creator: "posetrack",
		now:     time.Now,
		fileID:  uuid.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Writer) Path() string { return w.path }

func (w *Writer) Tracks() int { return len(w.tracks) }

// WriteObjectCurves queues one named track. Keys are encoded on Finalize.
func (w *Writer) WriteObjectCurves(name string, translation, rotation curve.Channel) error {
	if err := w.writable(); err != nil {
		return err
	}
	w.tracks = append(w.tracks, trackData{name: name, translation: translation, rotation: rotation})
	return nil
}

// Finalize encodes the scene and closes the file. It succeeds once; a
// failed encode removes the partial file.
func (w *Writer) Finalize() error {
	if err := w.writable(); err != nil {
		return err
	}
	w.finalized = true

	nodes := w.build()
	if err := fbx.Encode(w.f, fbx.Version, nodes); err != nil {
		w.f.Close()
		os.Remove(w.path)
		return fmt.Errorf("encode scene: %w", err)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.path)
		return fmt.Errorf("close scene: %w", err)
	}
	return nil
}

// Discard closes and removes an unfinalized file. It is a no-op after
// Finalize, so it can be deferred unconditionally.
func (w *Writer) Discard() error {
	if w.finalized || w.closed {
		return nil
	}
	w.closed = true
	w.f.Close()
	if err := os.Remove(w.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove unfinished scene: %w", err)
	}
	return nil
}

func (w *Writer) writable() error {
	if w.closed {
		return ErrClosed
	}
	if w.finalized {
		return ErrFinalized
	}
	return nil
}

func ktime(ms int64) int64 { return ms * KTimePerMs }
