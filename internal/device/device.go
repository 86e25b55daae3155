package device

import (
	"io"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// ID identifies a tracked device slot in the runtime.
type ID int

type Class int

const (
	ClassInvalid Class = iota
	ClassHMD
	ClassController
	ClassGenericTracker
	ClassTrackingReference
	ClassDisplayRedirect
)

func (c Class) String() string {
	switch c {
	case ClassInvalid:
		return "Not valid"
	case ClassHMD:
		return "HMD"
	case ClassController:
		return "Tracked controller"
	case ClassGenericTracker:
		return "Generic tracker"
	case ClassTrackingReference:
		return "Tracking reference"
	case ClassDisplayRedirect:
		return "Display redirect"
	default:
		return ""
	}
}

// Recordable reports whether devices of this class can be recorded.
// Base stations and display redirects supply no useful motion.
func (c Class) Recordable() bool {
	return c == ClassHMD || c == ClassController || c == ClassGenericTracker
}

// ParseClass maps config names ("hmd", "controller", "tracker",
// "reference", "redirect") to a Class.
func ParseClass(name string) (Class, bool) {
	switch name {
	case "hmd":
		return ClassHMD, true
	case "controller":
		return ClassController, true
	case "tracker", "generic_tracker":
		return ClassGenericTracker, true
	case "reference", "tracking_reference":
		return ClassTrackingReference, true
	case "redirect", "display_redirect":
		return ClassDisplayRedirect, true
	case "invalid", "":
		return ClassInvalid, true
	}
	return ClassInvalid, false
}

type Descriptor struct {
	ID    ID     `json:"id"`
	Class Class  `json:"class"`
	Name  string `json:"name"`
}

// Pose is the device-to-tracking-space transform: a 3x3 rotation and a
// translation column, in metres.
type Pose struct {
	Transform mgl64.Mat3x4
}

// Poser answers per-tick pose queries. QueryPose must not block.
type Poser interface {
	QueryPose(id ID) (Pose, bool)
}

// Source is the device capability the recorder depends on.
type Source interface {
	Poser
	// ListDevices returns the recordable devices currently known.
	ListDevices() map[ID]Descriptor
	IsConnected(id ID) bool
	ClassOf(id ID) Class
}

// Runtime is an opened device subsystem. Close releases it and must be
// called on every exit path.
type Runtime interface {
	Source
	io.Closer
}

// SortedIDs returns the ids of devs in ascending order.
func SortedIDs(devs map[ID]Descriptor) []ID {
	ids := make([]ID, 0, len(devs))
	for id := range devs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
