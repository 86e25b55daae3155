package config

import "sort"

// Rigs are simulated device layouts. Ids follow the usual runtime slot
// order: HMD first, then base stations, then hand-held and body devices.
var Rigs = map[string][]SimDevice{
	"hmd-only": {
		{ID: 0, Class: "hmd", Name: "Vive MV", Motion: "sway", Center: [3]float64{0, 1.7, 0}, Radius: 0.05, Speed: 0.5},
	},
	"standard": {
		{ID: 0, Class: "hmd", Name: "Vive MV", Motion: "sway", Center: [3]float64{0, 1.7, 0}, Radius: 0.05, Speed: 0.5},
		{ID: 1, Class: "reference", Name: "HTC V2-XD/XE", Motion: "static", Center: [3]float64{-2, 2.2, -2}},
		{ID: 2, Class: "reference", Name: "HTC V2-XD/XE", Motion: "static", Center: [3]float64{2, 2.2, 2}},
		{ID: 3, Class: "controller", Name: "Vive Controller MV", Motion: "orbit", Center: [3]float64{-0.3, 1.1, 0.2}, Radius: 0.25, Speed: 1.2},
		{ID: 4, Class: "controller", Name: "Vive Controller MV", Motion: "orbit", Center: [3]float64{0.3, 1.1, 0.2}, Radius: 0.25, Speed: -1.2},
	},
	"full-body": {
		{ID: 0, Class: "hmd", Name: "Vive MV", Motion: "sway", Center: [3]float64{0, 1.7, 0}, Radius: 0.05, Speed: 0.5},
		{ID: 1, Class: "reference", Name: "HTC V2-XD/XE", Motion: "static", Center: [3]float64{-2, 2.2, -2}},
		{ID: 2, Class: "reference", Name: "HTC V2-XD/XE", Motion: "static", Center: [3]float64{2, 2.2, 2}},
		{ID: 3, Class: "controller", Name: "Vive Controller MV", Motion: "orbit", Center: [3]float64{-0.3, 1.1, 0.2}, Radius: 0.25, Speed: 1.2},
		{ID: 4, Class: "controller", Name: "Vive Controller MV", Motion: "orbit", Center: [3]float64{0.3, 1.1, 0.2}, Radius: 0.25, Speed: -1.2},
		{ID: 5, Class: "tracker", Name: "VIVE Tracker Pro MV", Motion: "walk", Center: [3]float64{0, 1.0, 0}, Radius: 0.5, Speed: 0.4},
		{ID: 6, Class: "tracker", Name: "VIVE Tracker Pro MV", Motion: "walk", Center: [3]float64{-0.15, 0.1, 0}, Radius: 0.5, Speed: 0.4},
		{ID: 7, Class: "tracker", Name: "VIVE Tracker Pro MV", Motion: "walk", Center: [3]float64{0.15, 0.1, 0}, Radius: 0.5, Speed: 0.4},
	},
}

func GetRig(name string) []SimDevice {
	rig, ok := Rigs[name]
	if !ok {
		return nil
	}
	return rig
}

func ListRigs() []string {
	names := make([]string, 0, len(Rigs))
	for name := range Rigs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
