package allocation

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// solveLP maximizes sum(w*x) subject to sum(dur*x) <= budget and
// 0 <= x <= caps. It returns x.
func solveLP(w, caps []float64, dur, budget float64) ([]float64, error) {
	n := len(w)
	// variables: x_0..x_{n-1}, then the budget slack
	c := make([]float64, n+1)
	for i, v := range w {
		c[i] = -v
	}

	g := mat.NewDense(2*n+1, n+1, nil)
	h := make([]float64, 2*n+1)
	for i, cp := range caps {
		g.Set(i, i, 1)
		h[i] = cp
		g.Set(n+i, i, -1)
	}
	g.Set(2*n, n, -1)

	A := mat.NewDense(1, n+1, nil)
	for i := 0; i < n; i++ {
		A.Set(0, i, dur)
	}
	A.Set(0, n, 1)
	b := []float64{budget}

	cStd, AStd, bStd := lp.Convert(c, g, h, A, b)
	_, sol, err := lp.Simplex(cStd, AStd, bStd, 1e-9, nil)
	if err != nil {
		return nil, err
	}
	// Convert splits each free variable into a positive and a negative part.
	x := make([]float64, n)
	for i := range x {
		x[i] = sol[i] - sol[n+1+i]
	}
	return x, nil
}

// lpSolve points to the function used to solve the LP. It can be overridden in
// tests to simulate solver failures.
var lpSolve = solveLP

// linear allocates with the LP and falls back to rounding if the solver
// fails.
func (a allocator) linear() []int {
	wn := a.normalized()
	dur := a.dur.Seconds()
	budget := a.budget.Seconds()
	w := make([]float64, len(a.order))
	caps := make([]float64, len(a.order))
	limit := math.Floor(budget / dur)
	for k, i := range a.order {
		w[k] = wn[i]
		caps[k] = limit
		if m := a.maxExposures(); m > 0 && float64(m) < limit {
			caps[k] = float64(m)
		}
	}
	x, err := lpSolve(w, caps, dur, budget)
	if err != nil {
		return a.rounded()
	}
	counts := make([]int, len(a.w))
	for k, i := range a.order {
		counts[i] = int(math.Floor(x[k] + 1e-6))
		if counts[i] < 0 {
			counts[i] = 0
		}
	}
	return counts
}
