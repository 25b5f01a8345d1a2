package quiver

import "math"

// Combiner joins the scores of two alignment paths into a cell.
type Combiner interface {
	Combine(x, y float64) float64
	Combine4(x, y [4]float64) [4]float64
}

// Viterbi keeps the better of two paths, so a fill yields the score of the
// most probable alignment.
type Viterbi struct{}

// Combine implements Combiner.
func (Viterbi) Combine(x, y float64) float64 {
	if x > y {
		return x
	}
	return y
}

// Combine4 implements Combiner.
func (v Viterbi) Combine4(x, y [4]float64) (r [4]float64) {
	for k := range r {
		r[k] = v.Combine(x[k], y[k])
	}
	return r
}

// SumProduct adds the probabilities of two paths, so a fill yields the total
// log-likelihood over all alignments.
type SumProduct struct{}

// Combine implements Combiner.
func (SumProduct) Combine(x, y float64) float64 { return logAdd(x, y) }

// Combine4 implements Combiner.
func (SumProduct) Combine4(x, y [4]float64) (r [4]float64) {
	for k := range r {
		r[k] = logAdd(x[k], y[k])
	}
	return r
}

// logAdd returns log(exp(x)+exp(y)). Either argument may be -Inf.
func logAdd(x, y float64) float64 {
	if math.IsInf(x, -1) {
		return y
	}
	if math.IsInf(y, -1) {
		return x
	}
	if x < y {
		x, y = y, x
	}
	return x + math.Log1p(math.Exp(y-x))
}

func add4(a, b [4]float64) [4]float64 {
	return [4]float64{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}
