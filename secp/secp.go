package secp

import (
	"crypto/sha256"
	"errors"
	"io"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/frostsnap/core/group"
)

// Scalar wraps secp256k1.ModNScalar to implement group.Scalar.
type Scalar struct {
	inner secp256k1.ModNScalar
}

// Add implements group.Scalar.Add.
func (s *Scalar) Add(a, b group.Scalar) group.Scalar {
	aScalar := a.(*Scalar)
	bScalar := b.(*Scalar)
	s.inner.Add2(&aScalar.inner, &bScalar.inner)
	return s
}

// Sub implements group.Scalar.Sub.
func (s *Scalar) Sub(a, b group.Scalar) group.Scalar {
	aScalar := a.(*Scalar)
	bScalar := b.(*Scalar)
	negB := bScalar.inner
	negB.Negate()
	s.inner.Add2(&aScalar.inner, &negB)
	return s
}

// Mul implements group.Scalar.Mul.
func (s *Scalar) Mul(a, b group.Scalar) group.Scalar {
	aScalar := a.(*Scalar)
	bScalar := b.(*Scalar)
	s.inner.Mul2(&aScalar.inner, &bScalar.inner)
	return s
}

// Negate implements group.Scalar.Negate.
func (s *Scalar) Negate(a group.Scalar) group.Scalar {
	aScalar := a.(*Scalar)
	s.inner = aScalar.inner
	s.inner.Negate()
	return s
}

// Invert implements group.Scalar.Invert.
func (s *Scalar) Invert(a group.Scalar) (group.Scalar, error) {
	aScalar := a.(*Scalar)
	if aScalar.inner.IsZero() {
		return nil, errors.New("cannot invert zero scalar")
	}
	s.inner = aScalar.inner
	s.inner.InverseNonConst()
	return s, nil
}

// Set implements group.Scalar.Set.
func (s *Scalar) Set(a group.Scalar) group.Scalar {
	aScalar := a.(*Scalar)
	s.inner = aScalar.inner
	return s
}

// Bytes implements group.Scalar.Bytes.
func (s *Scalar) Bytes() []byte {
	b := s.inner.Bytes()
	out := make([]byte, len(b))
	copy(out, b[:])
	return out
}

// SetBytes implements group.Scalar.SetBytes.
// Values larger than the group order are reduced modulo the order, matching
// the behaviour of secp256k1.ModNScalar.SetByteSlice.
func (s *Scalar) SetBytes(data []byte) (group.Scalar, error) {
	s.inner.SetByteSlice(data)
	return s, nil
}

// Equal implements group.Scalar.Equal.
func (s *Scalar) Equal(b group.Scalar) bool {
	bScalar := b.(*Scalar)
	return s.inner.Equals(&bScalar.inner)
}

// IsZero implements group.Scalar.IsZero.
func (s *Scalar) IsZero() bool {
	return s.inner.IsZero()
}

// Point wraps a secp256k1.JacobianPoint to implement group.Point. The
// identity element is represented by a point with Z == 0.
type Point struct {
	inner secp256k1.JacobianPoint
}

// Add implements group.Point.Add.
func (p *Point) Add(a, b group.Point) group.Point {
	aPoint := a.(*Point)
	bPoint := b.(*Point)
	secp256k1.AddNonConst(&aPoint.inner, &bPoint.inner, &p.inner)
	return p
}

// Sub implements group.Point.Sub.
func (p *Point) Sub(a, b group.Point) group.Point {
	aPoint := a.(*Point)
	bPoint := b.(*Point)
	negB := bPoint.inner
	negB.Y.Negate(1)
	negB.Y.Normalize()
	secp256k1.AddNonConst(&aPoint.inner, &negB, &p.inner)
	return p
}

// Negate implements group.Point.Negate.
func (p *Point) Negate(a group.Point) group.Point {
	aPoint := a.(*Point)
	p.inner = aPoint.inner
	p.inner.Y.Negate(1)
	p.inner.Y.Normalize()
	return p
}

// ScalarMult implements group.Point.ScalarMult.
func (p *Point) ScalarMult(s group.Scalar, q group.Point) group.Point {
	scalar := s.(*Scalar)
	qPoint := q.(*Point)
	secp256k1.ScalarMultNonConst(&scalar.inner, &qPoint.inner, &p.inner)
	return p
}

// Set implements group.Point.Set.
func (p *Point) Set(a group.Point) group.Point {
	aPoint := a.(*Point)
	p.inner = aPoint.inner
	return p
}

// identityEncoding is the sentinel 33-byte encoding used for the point at
// infinity. No valid compressed secp256k1 point starts with a zero byte, so
// this never collides with a real encoding.
var identityEncoding = make([]byte, 33)

// Bytes implements group.Point.Bytes, returning a 33-byte compressed
// encoding (or the identity sentinel for the point at infinity).
func (p *Point) Bytes() []byte {
	if p.IsIdentity() {
		out := make([]byte, 33)
		copy(out, identityEncoding)
		return out
	}
	aff := p.inner
	aff.ToAffine()
	pub := secp256k1.NewPublicKey(&aff.X, &aff.Y)
	return pub.SerializeCompressed()
}

// SetBytes implements group.Point.SetBytes.
func (p *Point) SetBytes(data []byte) (group.Point, error) {
	if len(data) == 33 && isZero(data) {
		p.inner = secp256k1.JacobianPoint{}
		return p, nil
	}
	pub, err := secp256k1.ParsePubKey(data)
	if err != nil {
		return nil, err
	}
	pub.AsJacobian(&p.inner)
	return p, nil
}

func isZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

// Equal implements group.Point.Equal.
func (p *Point) Equal(b group.Point) bool {
	bPoint := b.(*Point)
	if p.IsIdentity() || bPoint.IsIdentity() {
		return p.IsIdentity() == bPoint.IsIdentity()
	}
	a := p.inner
	a.ToAffine()
	c := bPoint.inner
	c.ToAffine()
	return a.X.Equals(&c.X) && a.Y.Equals(&c.Y)
}

// IsIdentity implements group.Point.IsIdentity.
func (p *Point) IsIdentity() bool {
	return p.inner.Z.IsZero()
}

// Secp256k1 implements group.Group for Bitcoin's secp256k1 curve.
type Secp256k1 struct{}

// NewScalar implements group.Group.NewScalar.
func (g *Secp256k1) NewScalar() group.Scalar {
	return &Scalar{}
}

// NewPoint implements group.Group.NewPoint.
func (g *Secp256k1) NewPoint() group.Point {
	return &Point{}
}

// Generator implements group.Group.Generator.
func (g *Secp256k1) Generator() group.Point {
	var one secp256k1.ModNScalar
	one.SetInt(1)
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&one, &result)
	return &Point{inner: result}
}

// RandomScalar implements group.Group.RandomScalar.
func (g *Secp256k1) RandomScalar(r io.Reader) (group.Scalar, error) {
	var buf [32]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	var s Scalar
	s.inner.SetByteSlice(buf[:])
	if s.inner.IsZero() {
		return g.RandomScalar(r)
	}
	return &s, nil
}

// HashToScalar implements group.Group.HashToScalar.
func (g *Secp256k1) HashToScalar(data ...[]byte) (group.Scalar, error) {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	sum := h.Sum(nil)

	var s Scalar
	s.inner.SetByteSlice(sum)
	return &s, nil
}

// groupOrder is the order of the secp256k1 scalar field, big-endian.
var groupOrder = []byte{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE,
	0xBA, 0xAE, 0xDC, 0xE6, 0xAF, 0x48, 0xA0, 0x3B,
	0xBF, 0xD2, 0x5E, 0x8C, 0xD0, 0x36, 0x41, 0x41,
}

// Order implements group.Group.Order.
func (g *Secp256k1) Order() []byte {
	out := make([]byte, len(groupOrder))
	copy(out, groupOrder)
	return out
}
