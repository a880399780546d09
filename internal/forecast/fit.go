package forecast

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/agroprophet/agroprophet/internal/model"
)

// trainingRow pairs numLags consecutive prices with the numLeads prices
// that followed them.
type trainingRow struct {
	lags  []float64
	leads []float64
}

// buildTrainingSet slides a (numLags + numLeads) window over the
// chronological price history. Rows near either end of the history
// lack a full lag or lead set and are dropped.
func buildTrainingSet(points []model.PricePoint) []trainingRow {
	span := numLags + numLeads
	if len(points) < span {
		return nil
	}

	rows := make([]trainingRow, 0, len(points)-span+1)
	for i := 0; i+span <= len(points); i++ {
		row := trainingRow{
			lags:  make([]float64, numLags),
			leads: make([]float64, numLeads),
		}
		for j := 0; j < numLags; j++ {
			row.lags[j] = points[i+j].Price
		}
		for j := 0; j < numLeads; j++ {
			row.leads[j] = points[i+numLags+j].Price
		}
		rows = append(rows, row)
	}
	return rows
}

// fit estimates one coefficient vector per lead horizon by ridge-
// regularized least squares over the training rows. The tiny ridge
// term keeps the normal equations solvable when the price history is
// flat or collinear.
func fit(rows []trainingRow) ([][]float64, error) {
	if len(rows) == 0 {
		return nil, eris.New("forecast: empty training set")
	}

	const ridge = 1e-6
	p := numLags + 1 // intercept + lags

	// X'X is shared across horizons; only X'y differs.
	xtx := make([][]float64, p)
	for i := range xtx {
		xtx[i] = make([]float64, p)
	}
	features := func(r trainingRow) []float64 {
		f := make([]float64, p)
		f[0] = 1
		copy(f[1:], r.lags)
		return f
	}
	for _, r := range rows {
		f := features(r)
		for i := 0; i < p; i++ {
			for j := 0; j < p; j++ {
				xtx[i][j] += f[i] * f[j]
			}
		}
	}
	for i := 0; i < p; i++ {
		xtx[i][i] += ridge
	}

	coefficients := make([][]float64, numLeads)
	for h := 0; h < numLeads; h++ {
		xty := make([]float64, p)
		for _, r := range rows {
			f := features(r)
			for i := 0; i < p; i++ {
				xty[i] += f[i] * r.leads[h]
			}
		}
		beta, err := solveLinear(xtx, xty)
		if err != nil {
			return nil, eris.Wrapf(err, "forecast: fit horizon %d", h)
		}
		coefficients[h] = beta
	}
	return coefficients, nil
}

// solveLinear solves A x = b by Gaussian elimination with partial
// pivoting. A is copied; callers keep their matrix.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return nil, eris.New("forecast: singular system")
		}
		m[col], m[pivot] = m[pivot], m[col]

		for r := col + 1; r < n; r++ {
			factor := m[r][col] / m[col][col]
			for c := col; c <= n; c++ {
				m[r][c] -= factor * m[col][c]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for j := i + 1; j < n; j++ {
			sum -= m[i][j] * x[j]
		}
		x[i] = sum / m[i][i]
	}
	return x, nil
}
