package scene

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/san-kum/posetrack/internal/curve"
	"github.com/san-kum/posetrack/internal/fbx"
)

// Track is one animated model read back from a scene.
type Track struct {
	Name        string
	Translation curve.Channel
	Rotation    curve.Channel
}

// Keys returns the number of keys per axis of the translation channel.
func (t Track) Keys() int { return t.Translation.Len() }

type Scene struct {
	Version   uint32
	FileID    uuid.UUID
	Creator   string
	UnitScale float64
	TimeMode  int32
	Tracks    []Track
}

func ReadFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	return s, nil
}

// ReadTracks returns the tracks of a scene file in model order.
func ReadTracks(path string) ([]Track, error) {
	s, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.Tracks, nil
}

func Read(r io.Reader) (*Scene, error) {
	doc, err := fbx.Decode(r)
	if err != nil {
		return nil, err
	}

	s := &Scene{Version: doc.Version}
	if n := doc.Find("FileId"); n != nil {
		if b, ok := n.Prop(0).([]byte); ok {
			if id, err := uuid.FromBytes(b); err == nil {
				s.FileID = id
			}
		}
	}
	if n := doc.Find("Creator"); n != nil {
		s.Creator, _ = n.Prop(0).(string)
	}
	if gs := doc.Find("GlobalSettings"); gs != nil {
		readGlobalSettings(gs, s)
	}

	objects := doc.Find("Objects")
	if objects == nil {
		return s, nil
	}

	byID := make(map[int64]*fbx.Node)
	var models []int64
	for _, o := range objects.Children {
		id, ok := o.Prop(0).(int64)
		if !ok {
			continue
		}
		byID[id] = o
		if o.Name == "Model" {
			models = append(models, id)
		}
	}

	// parent id -> connected property -> child id
	links := make(map[int64]map[string]int64)
	if conns := doc.Find("Connections"); conns != nil {
		for _, c := range conns.ChildrenNamed("C") {
			if kind, _ := c.Prop(0).(string); kind != "OP" {
				continue
			}
			child, ok1 := c.Prop(1).(int64)
			parent, ok2 := c.Prop(2).(int64)
			prop, ok3 := c.Prop(3).(string)
			if !ok1 || !ok2 || !ok3 {
				return nil, fmt.Errorf("scene: malformed connection %v", c.Props)
			}
			if links[parent] == nil {
				links[parent] = make(map[string]int64)
			}
			links[parent][prop] = child
		}
	}

	for _, id := range models {
		full, _ := byID[id].Prop(1).(string)
		name, _ := splitName(full)

		t := Track{Name: name}
		if t.Translation, err = readChannel(curve.TranslationChannel, id, byID, links); err != nil {
			return nil, fmt.Errorf("track %q: %w", name, err)
		}
		if t.Rotation, err = readChannel(curve.RotationChannel, id, byID, links); err != nil {
			return nil, fmt.Errorf("track %q: %w", name, err)
		}
		s.Tracks = append(s.Tracks, t)
	}
	return s, nil
}

func readGlobalSettings(gs *fbx.Node, s *Scene) {
	props := gs.Child("Properties70")
	if props == nil {
		return
	}
	for _, pn := range props.ChildrenNamed("P") {
		switch pn.Prop(0) {
		case "UnitScaleFactor":
			s.UnitScale, _ = pn.Prop(4).(float64)
		case "TimeMode":
			s.TimeMode, _ = pn.Prop(4).(int32)
		}
	}
}

func readChannel(name string, modelID int64, byID map[int64]*fbx.Node, links map[int64]map[string]int64) (curve.Channel, error) {
	ch := curve.Channel{Name: name}

	nodeID, ok := links[modelID][name]
	if !ok {
		return ch, nil
	}

	axes := []*curve.Curve{&ch.X, &ch.Y, &ch.Z}
	for i, prop := range []string{"d|X", "d|Y", "d|Z"} {
		curveID, ok := links[nodeID][prop]
		if !ok {
			continue
		}
		n, ok := byID[curveID]
		if !ok {
			return ch, fmt.Errorf("curve %d not found", curveID)
		}
		c, err := readCurve(n)
		if err != nil {
			return ch, fmt.Errorf("%s %s: %w", name, prop, err)
		}
		*axes[i] = c
	}
	return ch, nil
}

func readCurve(n *fbx.Node) (curve.Curve, error) {
	var times []int64
	var values []float32

	if kt := n.Child("KeyTime"); kt != nil {
		times, _ = kt.Prop(0).([]int64)
	}
	if kv := n.Child("KeyValueFloat"); kv != nil {
		values, _ = kv.Prop(0).([]float32)
	}
	if len(times) != len(values) {
		return nil, fmt.Errorf("%d key times but %d values", len(times), len(values))
	}

	c := make(curve.Curve, len(times))
	for i := range times {
		c[i] = curve.Key{TimeMs: times[i] / KTimePerMs, Value: float64(values[i])}
	}
	return c, nil
}
