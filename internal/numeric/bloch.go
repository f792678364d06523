package numeric

import "math"

// Vec3 is a magnetisation or rotation vector.
type Vec3 [3]float64

// Dot returns u·v.
func (u Vec3) Dot(v Vec3) float64 { return u[0]*v[0] + u[1]*v[1] + u[2]*v[2] }

// Cross returns u×v.
func (u Vec3) Cross(v Vec3) Vec3 {
	return Vec3{u[1]*v[2] - u[2]*v[1], u[2]*v[0] - u[0]*v[2], u[0]*v[1] - u[1]*v[0]}
}

// Rotate advances m under dm/dt = Ω×m for dt seconds, Ω in rad/s.
func Rotate(m, omega Vec3, dt float64) Vec3 {
	norm := math.Sqrt(omega.Dot(omega))
	theta := norm * dt
	if theta == 0 {
		return m
	}
	n := Vec3{omega[0] / norm, omega[1] / norm, omega[2] / norm}
	cos, sin := math.Cos(theta), math.Sin(theta)
	nxm := n.Cross(m)
	nd := n.Dot(m) * (1 - cos)
	return Vec3{
		m[0]*cos + nxm[0]*sin + n[0]*nd,
		m[1]*cos + nxm[1]*sin + n[1]*nd,
		m[2]*cos + nxm[2]*sin + n[2]*nd,
	}
}

// RotateBack applies the inverse of Rotate.
func RotateBack(m, omega Vec3, dt float64) Vec3 {
	return Rotate(m, omega, -dt)
}
