package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/orientation"
	"github.com/san-kum/posetrack/internal/track"
)

// Fields names the per-sample values Series can extract.
var Fields = []string{"px", "py", "pz", "roll", "pitch", "yaw"}

// Series extracts one value per sample from seq.
func Series(seq *track.Sequence, field string) ([]float64, error) {
	out := make([]float64, 0, seq.Len())
	for _, s := range seq.Samples() {
		var v float64
		switch field {
		case "px":
			v = s.Position.X()
		case "py":
			v = s.Position.Y()
		case "pz":
			v = s.Position.Z()
		case "roll", "pitch", "yaw":
			e := orientation.QuaternionToEulerDegrees(s.Rotation)
			v = map[string]float64{"roll": e.Roll, "pitch": e.Pitch, "yaw": e.Yaw}[field]
		default:
			return nil, fmt.Errorf("unknown field: %s (available: %v)", field, Fields)
		}
		out = append(out, v)
	}
	return out, nil
}

// ExportCSV writes every sample of set with the rotation as Euler degrees,
// matching the channels written to the scene file.
func ExportCSV(w io.Writer, set *track.Set) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"device", "time_ms", "px", "py", "pz", "roll", "pitch", "yaw"}); err != nil {
		return err
	}

	var err error
	set.Each(func(id device.ID, seq *track.Sequence) bool {
		for _, s := range seq.Samples() {
			e := orientation.QuaternionToEulerDegrees(s.Rotation)
			row := []string{
				strconv.Itoa(int(id)),
				strconv.FormatInt(s.TimeMs, 10),
				formatFloat(s.Position.X()),
				formatFloat(s.Position.Y()),
				formatFloat(s.Position.Z()),
				formatFloat(e.Roll),
				formatFloat(e.Pitch),
				formatFloat(e.Yaw),
			}
			if err = cw.Write(row); err != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}
