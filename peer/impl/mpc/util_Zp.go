package mpc

import (
	"crypto/rand"
	"math/big"
	"math/bits"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// DefaultPrime is the field order used when none is configured.
const DefaultPrime uint64 = 127

// primeTestTimes is the number of Miller-Rabin rounds used to validate a
// configured field order.
const primeTestTimes = 20

// Element is a value of Zp. Elements produced by a Field are always in [0, p).
type Element uint64

// String returns the base-10 form used on the wire.
func (e Element) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

// Field implements arithmetic in Zp for a fixed prime p.
type Field struct {
	prime uint64
}

// NewField returns the field of the given prime order. p must be a prime in
// [2, 2^63).
func NewField(p uint64) (*Field, error) {
	if p < 2 || p >= 1<<63 {
		return nil, xerrors.Errorf("field order %d out of range", p)
	}
	if !new(big.Int).SetUint64(p).ProbablyPrime(primeTestTimes) {
		return nil, xerrors.Errorf("field order %d is not prime", p)
	}
	return &Field{prime: p}, nil
}

// Prime returns the field order.
func (f *Field) Prime() uint64 {
	return f.prime
}

// FromUint64 maps n into the field, returns n mod p.
func (f *Field) FromUint64(n uint64) Element {
	return Element(n % f.prime)
}

// Element returns n as a field element, or an error if n is not already in
// [0, p). Use it for values read from the network, which must never be
// silently reduced.
func (f *Field) Element(n uint64) (Element, error) {
	if n >= f.prime {
		return 0, xerrors.Errorf("value %d is not an element of Z%d", n, f.prime)
	}
	return Element(n), nil
}

// ParseElement reads a base-10 field element.
func (f *Field) ParseElement(s string) (Element, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("invalid field element %q: %v", s, err)
	}
	return f.Element(n)
}

// Add returns a + b mod p
func (f *Field) Add(a, b Element) Element {
	// p < 2^63 so the sum cannot overflow
	sum := uint64(a) + uint64(b)
	if sum >= f.prime {
		sum -= f.prime
	}
	return Element(sum)
}

// Sub returns a - b mod p
func (f *Field) Sub(a, b Element) Element {
	if a >= b {
		return Element(uint64(a) - uint64(b))
	}
	return Element(f.prime - (uint64(b) - uint64(a)))
}

// Neg returns -a mod p
func (f *Field) Neg(a Element) Element {
	return f.Sub(0, a)
}

// Mul returns a * b mod p
func (f *Field) Mul(a, b Element) Element {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	return Element(bits.Rem64(hi, lo, f.prime))
}

// Inverse returns a^-1 mod p. Zero has no inverse and is rejected.
func (f *Field) Inverse(a Element) (Element, error) {
	if a == 0 {
		return 0, ErrZeroInverse
	}
	p := new(big.Int).SetUint64(f.prime)
	inv := new(big.Int).ModInverse(new(big.Int).SetUint64(uint64(a)), p)
	if inv == nil {
		// only reachable if a shares a factor with p, impossible for prime p
		return 0, xerrors.Errorf("%d has no inverse in Z%d", a, f.prime)
	}
	return Element(inv.Uint64()), nil
}

// Div returns a * b^-1 mod p
func (f *Field) Div(a, b Element) (Element, error) {
	inv, err := f.Inverse(b)
	if err != nil {
		return 0, err
	}
	return f.Mul(a, inv), nil
}

// Random draws a uniformly distributed element.
func (f *Field) Random() (Element, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(f.prime))
	if err != nil {
		log.Err(err).Msg("failed to draw random field element")
		return 0, err
	}
	return Element(n.Uint64()), nil
}
