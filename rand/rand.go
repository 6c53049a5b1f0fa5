// Package rand provides small, copyable random number streams. A Stream is a
// plain value so that it can live inside a structure-of-arrays track state
// and be reseeded from (seed, event, track) without any allocation.
package rand

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Stream is a xorshift64* generator.
type Stream struct {
	s uint64
}

// splitmix64 scrambles a 64-bit value. It is used to turn structured seeds
// into well-mixed generator states.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// NewStream returns a stream which depends only on the given seed, event and
// track numbers. Two tracks with the same triple always see the same
// sequence of numbers, regardless of which slot they occupy.
func NewStream(seed uint64, event, track int64) Stream {
	s := splitmix64(seed)
	s = splitmix64(s ^ uint64(event))
	s = splitmix64(s ^ uint64(track))
	if s == 0 { s = 0x2545f4914f6cdd1d }
	return Stream{s}
}

// Split returns a child stream labeled by n. The parent is unchanged, and
// different labels give independent children.
func (r Stream) Split(n int64) Stream {
	s := splitmix64(r.s ^ splitmix64(uint64(n)))
	if s == 0 { s = 0x2545f4914f6cdd1d }
	return Stream{s}
}

// Uint64 returns the next raw value in the stream.
func (r *Stream) Uint64() uint64 {
	r.s ^= r.s >> 12
	r.s ^= r.s << 25
	r.s ^= r.s >> 27
	return r.s * 0x2545f4914f6cdd1d
}

// Float64 returns a uniform value in [0, 1).
func (r *Stream) Float64() float64 {
	return float64(r.Uint64()>>11) / (1 << 53)
}

// Uniform returns a uniform value in [low, high).
func (r *Stream) Uniform(low, high float64) float64 {
	return low + (high-low)*r.Float64()
}

// Exponential samples an exponential distribution with unit mean. The result
// is always finite.
func (r *Stream) Exponential() float64 {
	return -math.Log1p(-r.Float64())
}

// Isotropic samples a unit vector uniformly on the sphere.
func (r *Stream) Isotropic() mgl64.Vec3 {
	mu := r.Uniform(-1, 1)
	phi := r.Uniform(0, 2*math.Pi)
	sinTheta := math.Sqrt(1 - mu*mu)
	return mgl64.Vec3{sinTheta * math.Cos(phi), sinTheta * math.Sin(phi), mu}
}

// Rotate returns dir rotated by a polar angle with cosine mu and a uniformly
// sampled azimuthal angle about its own axis.
func (r *Stream) Rotate(dir mgl64.Vec3, mu float64) mgl64.Vec3 {
	phi := r.Uniform(0, 2*math.Pi)
	return RotateAbout(dir, mu, phi)
}

// RotateAbout rotates the unit vector dir by the polar angle acos(mu) and the
// azimuthal angle phi.
func RotateAbout(dir mgl64.Vec3, mu, phi float64) mgl64.Vec3 {
	sinTheta := math.Sqrt(math.Max(0, 1-mu*mu))
	sinPhi, cosPhi := math.Sincos(phi)

	// Any vector not parallel to dir works as the reference axis.
	ref := mgl64.Vec3{0, 0, 1}
	if math.Abs(dir[2]) > 0.9 { ref = mgl64.Vec3{1, 0, 0} }
	u := dir.Cross(ref).Normalize()
	v := dir.Cross(u)

	out := dir.Mul(mu).
		Add(u.Mul(sinTheta * cosPhi)).
		Add(v.Mul(sinTheta * sinPhi))
	return out.Normalize()
}
