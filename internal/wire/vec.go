package wire

import "math"

// Vec3 is a fixed-layout 3-component vector: x, y, z as float32 on the wire.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Quat is a unit quaternion: w, x, y, z as float32 on the wire, in that
// order.
type Quat struct {
	W, X, Y, Z float32
}

// QuatIdentity is the no-rotation quaternion.
func QuatIdentity() Quat {
	return Quat{W: 1}
}
