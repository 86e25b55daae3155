// Package orientation converts device transforms into the rotation
// representations used by the recorder.
//
//   - [MatrixToQuaternion]: rotation matrix to unit quaternion
//   - [QuaternionToEulerDegrees]: quaternion to roll/pitch/yaw degrees
//   - [Position], [Rotation]: split a 3x4 device transform
//
// Scene files only carry Euler rotation channels, so quaternions are kept
// in memory during capture and converted once at emission.
package orientation
