package orientation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const radToDeg = 180.0 / math.Pi

// Euler is a roll/pitch/yaw decomposition in degrees.
type Euler struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Vec3 returns the angles as an X/Y/Z triple (roll, pitch, yaw).
func (e Euler) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{e.Roll, e.Pitch, e.Yaw}
}

// MatrixToQuaternion extracts a unit quaternion from a rotation matrix
// using the trace method. Each radicand is clamped to zero so that
// rounding near singular orientations cannot produce NaN. The result is
// not re-normalized.
func MatrixToQuaternion(m mgl64.Mat3) mgl64.Quat {
	m00, m11, m22 := m.At(0, 0), m.At(1, 1), m.At(2, 2)

	w := math.Sqrt(math.Max(0, 1+m00+m11+m22)) / 2
	x := math.Sqrt(math.Max(0, 1+m00-m11-m22)) / 2
	y := math.Sqrt(math.Max(0, 1-m00+m11-m22)) / 2
	z := math.Sqrt(math.Max(0, 1-m00-m11+m22)) / 2

	x = math.Copysign(x, m.At(2, 1)-m.At(1, 2))
	y = math.Copysign(y, m.At(0, 2)-m.At(2, 0))
	z = math.Copysign(z, m.At(1, 0)-m.At(0, 1))

	return mgl64.Quat{W: w, V: mgl64.Vec3{x, y, z}}
}

// QuaternionToEulerDegrees converts q to roll (x), pitch (y) and yaw (z)
// in degrees.
//
// At gimbal lock the pitch argument reaches unit magnitude; pitch is then
// pinned to exactly ±90 and roll/yaw share one degree of freedom, so the
// decomposition is lossy there.
func QuaternionToEulerDegrees(q mgl64.Quat) Euler {
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp) * radToDeg

	var pitch float64
	sinp := 2 * (w*y - z*x)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(90, sinp)
	} else {
		pitch = math.Asin(sinp) * radToDeg
	}

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp) * radToDeg

	return Euler{Roll: roll, Pitch: pitch, Yaw: yaw}
}

// Position returns the translation column of a 3x4 device transform.
func Position(t mgl64.Mat3x4) mgl64.Vec3 {
	return t.Col(3)
}

// Rotation returns the upper-left 3x3 block of a 3x4 device transform.
func Rotation(t mgl64.Mat3x4) mgl64.Mat3 {
	return mgl64.Mat3FromCols(t.Col(0), t.Col(1), t.Col(2))
}

// Transform builds a 3x4 device transform from a rotation and a position.
func Transform(rot mgl64.Quat, pos mgl64.Vec3) mgl64.Mat3x4 {
	r := rot.Mat4().Mat3()
	c0, c1, c2 := r.Col(0), r.Col(1), r.Col(2)
	return mgl64.Mat3x4{
		c0[0], c0[1], c0[2],
		c1[0], c1[1], c1[2],
		c2[0], c2[1], c2[2],
		pos[0], pos[1], pos[2],
	}
}
