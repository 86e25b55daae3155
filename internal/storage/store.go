package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/track"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

var (
	ErrNotFound  = errors.New("storage: session not found")
	ErrAmbiguous = errors.New("storage: session id prefix is ambiguous")
)

var sampleHeader = []string{"device", "time_ms", "px", "py", "pz", "qw", "qx", "qy", "qz"}

// Store archives recorded sessions, one directory per session.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type DeviceSummary struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Class   string `json:"class"`
	Samples int    `json:"samples"`
	FirstMs int64  `json:"first_ms"`
	LastMs  int64  `json:"last_ms"`
}

type SessionMetadata struct {
	ID         string          `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Output     string          `json:"output"`
	Driver     string          `json:"driver"`
	DurationMs int64           `json:"duration_ms"`
	Ticks      int             `json:"ticks"`
	Drops      int             `json:"drops"`
	Devices    []DeviceSummary `json:"devices"`
}

// Save writes the metadata and the raw samples of set. An empty meta.ID
// gets a fresh uuid; Timestamp defaults to now. Device summaries are
// filled in from set using descs for names and classes.
func (s *Store) Save(meta SessionMetadata, descs map[device.ID]device.Descriptor, set *track.Set) (string, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.Devices = meta.Devices[:0]
	set.Each(func(id device.ID, seq *track.Sequence) bool {
		first, last := seq.Span()
		d := descs[id]
		meta.Devices = append(meta.Devices, DeviceSummary{
			ID:      int(id),
			Name:    d.Name,
			Class:   d.Class.String(),
			Samples: seq.Len(),
			FirstMs: first,
			LastMs:  last,
		})
		return true
	})

	if err := writeMetadata(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, samplesFile), set); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeMetadata(path string, meta SessionMetadata) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func writeSamples(path string, set *track.Set) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(sampleHeader); err != nil {
		return err
	}

	var werr error
	set.Each(func(id device.ID, seq *track.Sequence) bool {
		for _, smp := range seq.Samples() {
			q := smp.Rotation
			row := []string{
				strconv.Itoa(int(id)),
				strconv.FormatInt(smp.TimeMs, 10),
				formatFloat(smp.Position.X()),
				formatFloat(smp.Position.Y()),
				formatFloat(smp.Position.Z()),
				formatFloat(q.W),
				formatFloat(q.V.X()),
				formatFloat(q.V.Y()),
				formatFloat(q.V.Z()),
			}
			if werr = w.Write(row); werr != nil {
				return false
			}
		}
		return true
	})
	if werr != nil {
		return werr
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// List returns archived sessions, newest first.
func (s *Store) List() ([]SessionMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]SessionMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

// Resolve expands a unique id prefix to the full session id.
func (s *Store) Resolve(prefix string) (string, error) {
	if prefix == "" {
		return "", ErrNotFound
	}
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
		}
		return "", err
	}

	var matches []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if entry.Name() == prefix {
			return prefix, nil
		}
		if strings.HasPrefix(entry.Name(), prefix) {
			matches = append(matches, entry.Name())
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("%w: %s matches %d sessions", ErrAmbiguous, prefix, len(matches))
}

func (s *Store) Load(runID string) (*SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}

	var meta SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", metadataFile, err)
	}
	return &meta, nil
}

// LoadSamples rebuilds the recorded sequences in file order.
func (s *Store) LoadSamples(runID string) (*track.Set, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(sampleHeader)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	set := track.NewSet(0)
	for i, record := range records {
		if i == 0 {
			continue
		}
		id, smp, err := parseSample(record)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", samplesFile, i+1, err)
		}
		set.Add(id)
		seq, _ := set.Get(id)
		if err := seq.Append(smp); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", samplesFile, i+1, err)
		}
	}
	return set, nil
}

func parseSample(record []string) (device.ID, track.Sample, error) {
	id, err := strconv.Atoi(record[0])
	if err != nil {
		return 0, track.Sample{}, err
	}
	ms, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return 0, track.Sample{}, err
	}

	var v [7]float64
	for j := range v {
		if v[j], err = strconv.ParseFloat(record[j+2], 64); err != nil {
			return 0, track.Sample{}, err
		}
	}

	return device.ID(id), track.Sample{
		TimeMs:   ms,
		Position: mgl64.Vec3{v[0], v[1], v[2]},
		Rotation: mgl64.Quat{W: v[3], V: mgl64.Vec3{v[4], v[5], v[6]}},
	}, nil
}
