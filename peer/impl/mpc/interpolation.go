package mpc

import "golang.org/x/xerrors"

// Interpolate runs Lagrange interpolation over points and returns the value of
// the polynomial at x = 0:
//
//	sum_i y_i * prod_{j != i} (-x_j) / (x_i - x_j)
//
// The x coordinates must be pairwise distinct. With fewer than t+1 points of a
// degree t polynomial the result is meaningless and no error is raised; use
// InterpolateThreshold when the degree is known.
func (f *Field) Interpolate(points []Share) (Element, error) {
	if len(points) == 0 {
		return 0, xerrors.Errorf("no points to interpolate: %w", ErrInsufficientPoints)
	}

	var result Element
	for i, pi := range points {
		w := Element(1)
		for j, pj := range points {
			if i == j {
				continue
			}
			denominator := f.Sub(pi.X, pj.X)
			if denominator == 0 {
				return 0, xerrors.Errorf("x = %s appears twice: %w", pi.X, ErrDuplicateX)
			}
			tmp, err := f.Div(f.Neg(pj.X), denominator)
			if err != nil {
				return 0, err
			}
			w = f.Mul(w, tmp)
		}
		result = f.Add(result, f.Mul(w, pi.Y))
	}

	return result, nil
}

// InterpolateThreshold is Interpolate with the precondition that at least
// threshold+1 points are given.
func (f *Field) InterpolateThreshold(points []Share, threshold int) (Element, error) {
	if len(points) < threshold+1 {
		return 0, xerrors.Errorf("%d points for threshold %d: %w", len(points), threshold, ErrInsufficientPoints)
	}
	return f.Interpolate(points)
}
