package errormodel

// Prior is a flat per-base nucleotide frequency derived from the admitted
// k-mers of a trusted set's atgc accumulator (trust.Set.LoadCounts' third
// argument): P(A)=P(T)=at/2/total, P(C)=P(G)=gc/2/total.
type Prior struct {
	A, C, G, T float64
}

// NewPrior builds a Prior from the accumulated A+T and G+C base counts,
// splitting each evenly between its two bases since the count-file
// calibration corpus does not distinguish them further.
func NewPrior(atgc [2]uint64) Prior {
	at, gc := float64(atgc[0]), float64(atgc[1])
	total := at + gc
	if total == 0 {
		return Prior{A: 0.25, C: 0.25, G: 0.25, T: 0.25}
	}
	return Prior{
		A: at / 2 / total,
		T: at / 2 / total,
		C: gc / 2 / total,
		G: gc / 2 / total,
	}
}

// ATFraction reports the corpus-wide AT content, the figure
// original_source/src/correct.cpp reports alongside the learned model.
func (p Prior) ATFraction() float64 {
	return p.A + p.T
}
