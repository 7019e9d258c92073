// Package geom holds the small fixed-size linear algebra used by the solvers.
// Vectors are row vectors; a Matrix3 is three row vectors (a lattice basis).
package geom

import "math"

// Vector3 is an ordered triple of reals. Serialized as a 3-element JSON array.
type Vector3 [3]float64

// Matrix3 is three row vectors.
type Matrix3 [3]Vector3

// Identity returns the 3x3 identity matrix.
func Identity() Matrix3 {
	return Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Add returns v + w.
func (v Vector3) Add(w Vector3) Vector3 {
	return Vector3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vector3) Sub(w Vector3) Vector3 {
	return Vector3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Scale returns s*v.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{s * v[0], s * v[1], s * v[2]}
}

// Dot returns the scalar product.
func (v Vector3) Dot(w Vector3) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Cross returns v × w.
func (v Vector3) Cross(w Vector3) Vector3 {
	return Vector3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Norm returns the Euclidean length.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns v/|v|. The zero vector is returned unchanged.
func (v Vector3) Normalize() Vector3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// IsZero reports whether all components are exactly zero.
func (v Vector3) IsZero() bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

// IsFinite reports whether no component is NaN or ±Inf.
func (v Vector3) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Combine returns c0*m[0] + c1*m[1] + c2*m[2], i.e. the row vector c times m.
func (m Matrix3) Combine(c Vector3) Vector3 {
	var out Vector3
	for i := 0; i < 3; i++ {
		out = out.Add(m[i].Scale(c[i]))
	}
	return out
}

// Apply returns m·v treating v as a column vector.
func (m Matrix3) Apply(v Vector3) Vector3 {
	return Vector3{m[0].Dot(v), m[1].Dot(v), m[2].Dot(v)}
}

// Transpose returns mᵀ.
func (m Matrix3) Transpose() Matrix3 {
	var t Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = m[j][i]
		}
	}
	return t
}

// Det returns the determinant.
func (m Matrix3) Det() float64 {
	return m[0].Dot(m[1].Cross(m[2]))
}

// Mul returns the matrix product m·n.
func (m Matrix3) Mul(n Matrix3) Matrix3 {
	nt := n.Transpose()
	var out Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i].Dot(nt[j])
		}
	}
	return out
}

// Inverse returns m⁻¹ and false when |det m| <= tol.
func (m Matrix3) Inverse(tol float64) (Matrix3, bool) {
	det := m.Det()
	if math.Abs(det) <= tol || math.IsNaN(det) {
		return Matrix3{}, false
	}
	// Columns of the inverse are the cross products of the rows, divided by det.
	c0 := m[1].Cross(m[2]).Scale(1 / det)
	c1 := m[2].Cross(m[0]).Scale(1 / det)
	c2 := m[0].Cross(m[1]).Scale(1 / det)
	return Matrix3{c0, c1, c2}.Transpose(), true
}

// RowLengths returns |m[0]|, |m[1]|, |m[2]|.
func (m Matrix3) RowLengths() Vector3 {
	return Vector3{m[0].Norm(), m[1].Norm(), m[2].Norm()}
}

// IsFinite reports whether every entry is finite.
func (m Matrix3) IsFinite() bool {
	return m[0].IsFinite() && m[1].IsFinite() && m[2].IsFinite()
}

// RotationAbout returns the rotation matrix for angle rad about axis (Rodrigues).
// The axis need not be normalized; a zero axis yields the identity.
func RotationAbout(axis Vector3, rad float64) Matrix3 {
	if axis.IsZero() {
		return Identity()
	}
	u := axis.Normalize()
	c, s := math.Cos(rad), math.Sin(rad)
	t := 1 - c
	x, y, z := u[0], u[1], u[2]
	return Matrix3{
		{t*x*x + c, t*x*y - s*z, t*x*z + s*y},
		{t*x*y + s*z, t*y*y + c, t*y*z - s*x},
		{t*x*z - s*y, t*y*z + s*x, t*z*z + c},
	}
}
