package simulated

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/posetrack/internal/config"
	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/orientation"
)

func TestListDevicesOnlyRecordable(t *testing.T) {
	rt, err := New(config.GetRig("standard"), 0, 1)
	require.NoError(t, err)
	defer rt.Close()

	devs := rt.ListDevices()
	assert.Len(t, devs, 3)
	assert.Contains(t, devs, device.ID(0))
	assert.Contains(t, devs, device.ID(3))
	assert.Contains(t, devs, device.ID(4))
	assert.NotContains(t, devs, device.ID(1), "base stations are not recordable")

	assert.Equal(t, device.ClassTrackingReference, rt.ClassOf(1))
	assert.Equal(t, device.ClassInvalid, rt.ClassOf(42))
}

func TestQueryPoseFollowsMotion(t *testing.T) {
	now := 0.0
	devs := []config.SimDevice{
		{ID: 0, Class: "hmd", Name: "still", Motion: "static", Center: [3]float64{1, 2, 3}},
		{ID: 1, Class: "tracker", Name: "walker", Motion: "walk", Radius: 1, Speed: 1},
	}
	rt, err := New(devs, 0, 1, WithTime(func() float64 { return now }))
	require.NoError(t, err)

	pose, ok := rt.QueryPose(0)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, orientation.Position(pose.Transform))

	p0, ok := rt.QueryPose(1)
	require.True(t, ok)
	now = 2
	p1, ok := rt.QueryPose(1)
	require.True(t, ok)

	z0 := orientation.Position(p0.Transform).Z()
	z1 := orientation.Position(p1.Transform).Z()
	assert.Less(t, z1, z0, "walker moves towards -Z")
}

func TestQueryPoseInvalidCases(t *testing.T) {
	devs := []config.SimDevice{
		{ID: 0, Class: "controller", Name: "off", Disconnected: true},
	}
	rt, err := New(devs, 0, 1)
	require.NoError(t, err)

	_, ok := rt.QueryPose(0)
	assert.False(t, ok, "disconnected device has no pose")
	assert.False(t, rt.IsConnected(0))

	_, ok = rt.QueryPose(7)
	assert.False(t, ok, "unknown device has no pose")
}

func TestDropout(t *testing.T) {
	devs := []config.SimDevice{{ID: 0, Class: "hmd", Name: "hmd"}}

	always, err := New(devs, 1, 1)
	require.NoError(t, err)
	_, ok := always.QueryPose(0)
	assert.False(t, ok)

	some, err := New(devs, 0.5, 3)
	require.NoError(t, err)
	valid := 0
	for i := 0; i < 1000; i++ {
		if _, ok := some.QueryPose(0); ok {
			valid++
		}
	}
	assert.InDelta(t, 500, valid, 100)
}

func TestCloseInvalidatesPoses(t *testing.T) {
	rt, err := New(config.GetRig("hmd-only"), 0, 1)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	_, ok := rt.QueryPose(0)
	assert.False(t, ok)
}

func TestNewRejectsBadDevices(t *testing.T) {
	tests := []struct {
		name string
		devs []config.SimDevice
	}{
		{"bad class", []config.SimDevice{{ID: 0, Class: "toaster"}}},
		{"bad motion", []config.SimDevice{{ID: 0, Class: "hmd", Motion: "teleport"}}},
		{"duplicate", []config.SimDevice{{ID: 0, Class: "hmd"}, {ID: 0, Class: "tracker"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.devs, 0, 1)
			assert.Error(t, err)
		})
	}
}
