package session

import (
	"errors"
	"fmt"

	"github.com/san-kum/posetrack/internal/device"
)

// Setup failures. All of them abort before recording starts.
var (
	// ErrNoOutput means no output path was given.
	ErrNoOutput = errors.New("posetrack: no output file specified")

	// ErrRuntimeInit means the device runtime could not be opened.
	ErrRuntimeInit = errors.New("posetrack: device runtime failed to initialize")

	// ErrSinkUnavailable means the output file could not be created.
	ErrSinkUnavailable = errors.New("posetrack: output file unavailable")
)

// SetupError ties a setup failure to the step that produced it. Both the
// sentinel Kind and the underlying cause match with errors.Is.
type SetupError struct {
	Step string
	Kind error
	Err  error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *SetupError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type WarningKind int

const (
	WarnUnknownDevice WarningKind = iota
	WarnIneligibleDevice
	WarnDuplicateDevice
)

// Warning is a requested device id that was left out of the recording.
type Warning struct {
	Kind  WarningKind
	ID    device.ID
	Class device.Class
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnIneligibleDevice:
		return fmt.Sprintf("Device %d (%s) cannot be recorded", w.ID, w.Class)
	case WarnDuplicateDevice:
		return fmt.Sprintf("Device %d listed more than once", w.ID)
	}
	return fmt.Sprintf("Unrecognized device id: %d", w.ID)
}
