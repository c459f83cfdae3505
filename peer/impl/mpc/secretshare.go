package mpc

import (
	"go.dedis.ch/mpcsum/types"
	"golang.org/x/xerrors"
)

// Polynomial is a polynomial over Zp, coefficients[i] is the coefficient of
// x^i.
type Polynomial struct {
	field        *Field
	coefficients []Element
}

// NewPolynomial returns the polynomial with the given coefficients, lowest
// degree first. Coefficients are reduced into the field.
func (f *Field) NewPolynomial(coefficients ...Element) *Polynomial {
	coeffs := make([]Element, len(coefficients))
	for i, c := range coefficients {
		coeffs[i] = f.FromUint64(uint64(c))
	}
	if len(coeffs) == 0 {
		coeffs = []Element{0}
	}
	return &Polynomial{field: f, coefficients: coeffs}
}

// NewRandomPolynomial generates a random polynomial of the given degree with
// f(0) = secret. All other coefficients are independent uniform draws.
func (f *Field) NewRandomPolynomial(secret Element, degree int) (*Polynomial, error) {
	if degree < 0 {
		return nil, xerrors.Errorf("negative degree %d", degree)
	}

	// a polynomial of degree d is defined by d + 1 coefficients
	coefficients := make([]Element, degree+1)
	coefficients[0] = f.FromUint64(uint64(secret))

	for i := 1; i <= degree; i++ {
		n, err := f.Random()
		if err != nil {
			return nil, err
		}
		coefficients[i] = n
	}

	return &Polynomial{field: f, coefficients: coefficients}, nil
}

// Degree returns the nominal degree, i.e. the number of coefficients minus one.
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}

// Coefficient returns the coefficient of x^i.
func (p *Polynomial) Coefficient(i int) Element {
	if i < 0 || i >= len(p.coefficients) {
		return 0
	}
	return p.coefficients[i]
}

// Evaluate computes p(x) with Horner's rule.
func (p *Polynomial) Evaluate(x Element) Element {
	f := p.field
	value := p.coefficients[len(p.coefficients)-1]
	for i := len(p.coefficients) - 2; i >= 0; i-- {
		value = f.Mul(value, x)
		value = f.Add(value, p.coefficients[i])
	}
	return value
}

// Share is one evaluation point (x, p(x)) of a sharing polynomial.
type Share struct {
	X Element
	Y Element
}

// GenerateSecret draws a uniformly random secret.
func (f *Field) GenerateSecret() (Element, error) {
	return f.Random()
}

// Share splits secret with a fresh random polynomial of the given degree
// (the threshold t) and evaluates it at every party id. All shares of one call
// are points of the same polynomial.
func (f *Field) Share(secret Element, ids []types.PartyID, degree int) (map[types.PartyID]Share, error) {
	xcoord, err := f.evaluationPoints(ids)
	if err != nil {
		return nil, err
	}

	poly, err := f.NewRandomPolynomial(secret, degree)
	if err != nil {
		return nil, err
	}

	return poly.shareAt(ids, xcoord), nil
}

// ShareWith evaluates an existing polynomial at every party id.
func (f *Field) ShareWith(poly *Polynomial, ids []types.PartyID) (map[types.PartyID]Share, error) {
	xcoord, err := f.evaluationPoints(ids)
	if err != nil {
		return nil, err
	}
	return poly.shareAt(ids, xcoord), nil
}

func (p *Polynomial) shareAt(ids []types.PartyID, xcoord []Element) map[types.PartyID]Share {
	results := make(map[types.PartyID]Share, len(ids))
	for idx, id := range ids {
		x := xcoord[idx]
		results[id] = Share{X: x, Y: p.Evaluate(x)}
	}
	return results
}

// evaluationPoints maps party ids to x coordinates and checks they are
// nonzero and pairwise distinct in the field.
func (f *Field) evaluationPoints(ids []types.PartyID) ([]Element, error) {
	if len(ids) == 0 {
		return nil, xerrors.Errorf("no evaluation points")
	}

	seen := make(map[Element]types.PartyID, len(ids))
	xcoord := make([]Element, len(ids))
	for idx, id := range ids {
		x := f.FromUint64(uint64(id))
		// evaluating at 0 would hand out the secret itself
		if x == 0 {
			return nil, xerrors.Errorf("party %d maps to x = 0: %w", id, ErrZeroPoint)
		}
		if other, ok := seen[x]; ok {
			return nil, xerrors.Errorf("parties %d and %d share x = %s: %w", other, id, x, ErrDuplicateID)
		}
		seen[x] = id
		xcoord[idx] = x
	}
	return xcoord, nil
}
