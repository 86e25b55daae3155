package session_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/posetrack/internal/capture"
	"github.com/san-kum/posetrack/internal/clock"
	"github.com/san-kum/posetrack/internal/device"
	"github.com/san-kum/posetrack/internal/orientation"
	"github.com/san-kum/posetrack/internal/scene"
	"github.com/san-kum/posetrack/internal/session"
)

type motion func(call int) mgl64.Vec3

// rig is a scripted device runtime. Each query of a device advances its
// own motion by one step.
type rig struct {
	devices map[device.ID]device.Descriptor
	extra   map[device.ID]device.Class
	motions map[device.ID]motion
	calls   map[device.ID]int
	closed  int
}

func newRig() *rig {
	return &rig{
		devices: make(map[device.ID]device.Descriptor),
		extra:   make(map[device.ID]device.Class),
		motions: make(map[device.ID]motion),
		calls:   make(map[device.ID]int),
	}
}

func (r *rig) add(id device.ID, class device.Class, name string, m motion) *rig {
	r.devices[id] = device.Descriptor{ID: id, Class: class, Name: name}
	r.motions[id] = m
	return r
}

func (r *rig) ListDevices() map[device.ID]device.Descriptor {
	out := make(map[device.ID]device.Descriptor, len(r.devices))
	for id, d := range r.devices {
		out[id] = d
	}
	return out
}

func (r *rig) IsConnected(id device.ID) bool {
	_, ok := r.devices[id]
	return ok
}

func (r *rig) ClassOf(id device.ID) device.Class {
	if d, ok := r.devices[id]; ok {
		return d.Class
	}
	return r.extra[id]
}

func (r *rig) QueryPose(id device.ID) (device.Pose, bool) {
	m, ok := r.motions[id]
	if !ok {
		return device.Pose{}, false
	}
	call := r.calls[id]
	r.calls[id]++
	return device.Pose{Transform: orientation.Transform(mgl64.QuatIdent(), m(call))}, true
}

func (r *rig) Close() error {
	r.closed++
	return nil
}

func (r *rig) opener() session.Opener {
	return func(context.Context) (device.Runtime, error) { return r, nil }
}

func still(int) mgl64.Vec3 { return mgl64.Vec3{} }

func alongZ(call int) mgl64.Vec3 { return mgl64.Vec3{0, 0, float64(call)} }

// threeTicks stops the loop once the third scripted timestamp is reached.
func threeTicks() session.Options {
	return session.Options{
		Clock: clock.NewManual(0, 16, 33),
		Loop:  []capture.Option{capture.WithMaxDuration(33 * time.Millisecond)},
	}
}

var _ = Describe("Session", func() {
	var (
		ctx    context.Context
		dir    string
		output string
		status *bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		output = filepath.Join(dir, "take.fbx")
		status = &bytes.Buffer{}
	})

	record := func(s *session.Session) {
		_, err := s.Record(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Emit()
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())
	}

	Context("with two devices recorded for three ticks", func() {
		var tracks []scene.Track

		BeforeEach(func() {
			r := newRig().
				add(1, device.ClassController, "Left", still).
				add(2, device.ClassGenericTracker, "Puck", alongZ)

			opts := threeTicks()
			opts.Output = output
			opts.Devices = []int{1, 2}
			opts.Status = status

			s, err := session.Setup(ctx, r.opener(), opts)
			Expect(err).NotTo(HaveOccurred())
			record(s)
			Expect(r.closed).To(Equal(1))

			tracks, err = scene.ReadTracks(output)
			Expect(err).NotTo(HaveOccurred())
		})

		It("writes one named track per device", func() {
			Expect(tracks).To(HaveLen(2))
			Expect(tracks[0].Name).To(Equal("Left - 1"))
			Expect(tracks[1].Name).To(Equal("Puck - 2"))
		})

		It("keys every channel at the sampled timestamps", func() {
			for _, t := range tracks {
				for _, c := range []struct{ tr, rot []int64 }{
					{t.Translation.X.Times(), t.Rotation.X.Times()},
					{t.Translation.Y.Times(), t.Rotation.Y.Times()},
					{t.Translation.Z.Times(), t.Rotation.Z.Times()},
				} {
					Expect(c.tr).To(Equal([]int64{0, 16, 33}))
					Expect(c.rot).To(Equal([]int64{0, 16, 33}))
				}
			}
		})

		It("writes zero rotation for unrotated devices", func() {
			for _, t := range tracks {
				Expect(t.Rotation.X.Values()).To(Equal([]float64{0, 0, 0}))
				Expect(t.Rotation.Y.Values()).To(Equal([]float64{0, 0, 0}))
				Expect(t.Rotation.Z.Values()).To(Equal([]float64{0, 0, 0}))
			}
		})

		It("records the moving device with strictly increasing Z", func() {
			z := tracks[1].Translation.Z.Values()
			Expect(z).To(HaveLen(3))
			Expect(z[0]).To(BeNumerically("<", z[1]))
			Expect(z[1]).To(BeNumerically("<", z[2]))
			Expect(tracks[0].Translation.Z.Values()).To(Equal([]float64{0, 0, 0}))
		})

		It("reports what it records", func() {
			Expect(status.String()).To(ContainSubstring("Controller connected on 1"))
			Expect(status.String()).To(ContainSubstring("Tracker connected on 2"))
			Expect(status.String()).To(ContainSubstring("Recording 1: Left"))
			Expect(status.String()).To(ContainSubstring("Recording 2: Puck"))
		})
	})

	It("finalizes an empty scene when nothing is selected", func() {
		r := newRig()
		opts := threeTicks()
		opts.Output = output

		s, err := session.Setup(ctx, r.opener(), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Selected()).To(BeEmpty())
		record(s)

		tracks, err := scene.ReadTracks(output)
		Expect(err).NotTo(HaveOccurred())
		Expect(tracks).To(BeEmpty())
	})

	It("warns about an unknown id and records the rest", func() {
		r := newRig().
			add(0, device.ClassHMD, "Headset", still).
			add(1, device.ClassController, "Right", alongZ)

		opts := threeTicks()
		opts.Output = output
		opts.Devices = []int{0, 99, 1}
		opts.Status = status

		s, err := session.Setup(ctx, r.opener(), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Warnings()).To(ConsistOf(session.Warning{Kind: session.WarnUnknownDevice, ID: 99}))
		Expect(status.String()).To(ContainSubstring("Unrecognized device id: 99"))
		record(s)

		tracks, err := scene.ReadTracks(output)
		Expect(err).NotTo(HaveOccurred())
		Expect(tracks).To(HaveLen(2))
		Expect(tracks[0].Name).To(Equal("Headset - 0"))
		Expect(tracks[1].Name).To(Equal("Right - 1"))
		Expect(tracks[1].Keys()).To(Equal(3))
	})

	It("keeps the requested order and drops duplicates and base stations", func() {
		r := newRig().
			add(0, device.ClassHMD, "Headset", still).
			add(3, device.ClassController, "Left", still).
			add(4, device.ClassController, "Right", still)
		r.extra[1] = device.ClassTrackingReference

		opts := threeTicks()
		opts.Output = output
		opts.Devices = []int{4, 1, 0, 4}

		s, err := session.Setup(ctx, r.opener(), opts)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(s.Selected()).To(HaveLen(2))
		Expect(s.Selected()[0].ID).To(Equal(device.ID(4)))
		Expect(s.Selected()[1].ID).To(Equal(device.ID(0)))
		Expect(s.Warnings()).To(Equal([]session.Warning{
			{Kind: session.WarnIneligibleDevice, ID: 1, Class: device.ClassTrackingReference},
			{Kind: session.WarnDuplicateDevice, ID: 4},
		}))
	})

	It("records every eligible device in id order when none are requested", func() {
		r := newRig().
			add(5, device.ClassGenericTracker, "Puck", still).
			add(0, device.ClassHMD, "Headset", still)

		opts := threeTicks()
		opts.Output = output
		opts.Status = status

		s, err := session.Setup(ctx, r.opener(), opts)
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		Expect(s.Set().IDs()).To(Equal([]device.ID{0, 5}))
		Expect(status.String()).To(ContainSubstring("No device list specified, recording all devices"))
	})

	Describe("setup failures", func() {
		It("requires an output path", func() {
			_, err := session.Setup(ctx, newRig().opener(), session.Options{})
			Expect(err).To(MatchError(session.ErrNoOutput))
		})

		It("reports a runtime that fails to start", func() {
			cause := errors.New("no HMD found")
			open := func(context.Context) (device.Runtime, error) { return nil, cause }

			_, err := session.Setup(ctx, open, session.Options{Output: output})
			Expect(errors.Is(err, session.ErrRuntimeInit)).To(BeTrue())
			Expect(errors.Is(err, cause)).To(BeTrue())
		})

		It("fails before recording when the output cannot be created and releases the runtime", func() {
			r := newRig().add(0, device.ClassHMD, "Headset", still)

			_, err := session.Setup(ctx, r.opener(), session.Options{Output: filepath.Join(dir, "missing", "take.fbx")})
			Expect(errors.Is(err, session.ErrSinkUnavailable)).To(BeTrue())
			Expect(r.closed).To(Equal(1))
			Expect(r.calls).To(BeEmpty())
		})

		It("stops waiting for warm-up when the context ends", func() {
			r := newRig()
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := session.Setup(cctx, r.opener(), session.Options{Output: output, Warmup: time.Hour})
			Expect(err).To(MatchError(context.Canceled))
			Expect(r.closed).To(Equal(1))
		})
	})

	It("removes the unfinished file when closed without emitting", func() {
		r := newRig().add(0, device.ClassHMD, "Headset", still)
		opts := threeTicks()
		opts.Output = output

		s, err := session.Setup(ctx, r.opener(), opts)
		Expect(err).NotTo(HaveOccurred())
		Expect(output).To(BeAnExistingFile())

		Expect(s.Close()).To(Succeed())
		Expect(s.Close()).To(Succeed())
		Expect(r.closed).To(Equal(1))

		_, err = os.Stat(output)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("treats cancellation as a normal stop", func() {
		r := newRig().add(0, device.ClassHMD, "Headset", alongZ)
		cctx, cancel := context.WithCancel(ctx)

		s, err := session.Setup(cctx, r.opener(), session.Options{Output: output, Clock: clock.NewManual()})
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		stats, err := s.Record(cctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Ticks).To(BeNumerically(">", 0))

		n, err := s.Emit()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))
	})

	It("lists every known device with its connection state", func() {
		r := newRig().
			add(0, device.ClassHMD, "Headset", still).
			add(3, device.ClassController, "Left", still)

		var out bytes.Buffer
		session.ListDevices(&out, r)
		Expect(out.String()).To(Equal("VR tracked devices:\n" +
			"Device 0 (Headset) connected - HMD\n" +
			"Device 3 (Left) connected - Tracked controller\n"))
	})
})
