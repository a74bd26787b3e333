package gamemath

import "math"

// Quat is a rotation quaternion.
type Quat struct {
	X, Y, Z, W float64
}

// IdentityQuat returns the no-rotation quaternion.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// QuatFromYaw builds a rotation of rad radians about the +Y axis.
func QuatFromYaw(rad float64) Quat {
	half := rad / 2
	return Quat{Y: math.Sin(half), W: math.Cos(half)}
}

// Mul composes two rotations: q then o, in q's local frame.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Conjugate is the inverse for unit quaternions.
func (q Quat) Conjugate() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

func (q Quat) Dot(o Quat) float64 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Normalized rescales to unit length; the identity is returned for
// degenerate input.
func (q Quat) Normalized() Quat {
	l := math.Sqrt(q.Dot(q))
	if l < 1e-9 {
		return IdentityQuat()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Rotate applies the rotation to a vector.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v' = q * (v, 0) * q^-1, expanded without allocating intermediates.
	u := Vec3{q.X, q.Y, q.Z}
	uv := u.Cross(v)
	uuv := u.Cross(uv)
	return v.Add(uv.Scale(2 * q.W)).Add(uuv.Scale(2))
}

// Cross returns the cross product.
func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Nlerp interpolates between two rotations along the shortest arc and
// renormalizes. Cheaper than slerp and close enough at tick-scale angular
// deltas.
func (q Quat) Nlerp(o Quat, t float64) Quat {
	if q.Dot(o) < 0 {
		o = Quat{-o.X, -o.Y, -o.Z, -o.W}
	}
	return Quat{
		X: q.X + (o.X-q.X)*t,
		Y: q.Y + (o.Y-q.Y)*t,
		Z: q.Z + (o.Z-q.Z)*t,
		W: q.W + (o.W-q.W)*t,
	}.Normalized()
}

// Yaw extracts the rotation angle about +Y in radians, assuming the
// quaternion is a pure yaw rotation.
func (q Quat) Yaw() float64 {
	return 2 * math.Atan2(q.Y, q.W)
}

// AngleTo returns the absolute angular difference in radians between two
// unit quaternions.
func (q Quat) AngleTo(o Quat) float64 {
	d := math.Abs(q.Dot(o))
	if d > 1 {
		d = 1
	}
	return 2 * math.Acos(d)
}
