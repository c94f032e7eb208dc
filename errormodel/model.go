// Package errormodel learns a quality- and base-aware substitution model
// from a first correction pass and smooths it across the quality dimension,
// for use in place of the flat 1/3 substitution prior in later passes.
package errormodel

import (
	"math"

	"github.com/grailbio/readcorrect/kmer"
)

// MaxQual bounds the Phred quality values the model tracks; qualities at or
// above it are clamped down to MaxQual-1 when learning and querying.
const MaxQual = 64

// Model is a substitution-probability table indexed by [quality][actual][observed]:
// Prob[q][a][o] approximates, among reads where the true base was a and it
// was miscalled, the fraction of those miscalls reported as o. It is seeded
// with raw counts by Observe and only becomes predictive once Regress has
// smoothed it; an unregressed Model's Ratio falls back to a uniform 1/3
// split, since raw per-quality counts are too sparse to trust alone (this
// is exactly why original_source/src/correct.cpp never skips the
// regression step before using the model).
type Model struct {
	Counts    [MaxQual][4][4]uint64
	Prob      [MaxQual][4][4]float64
	regressed bool
}

// NewModel returns an empty model. Call Observe to accumulate counts from a
// first correction pass, then Regress before using it as a
// correct.SubstitutionModel for a second pass.
func NewModel() *Model {
	return &Model{}
}

func clampQual(q int) int {
	if q < 0 {
		return 0
	}
	if q >= MaxQual {
		return MaxQual - 1
	}
	return q
}

// Observe records one correction found during a first pass: at Phred
// quality qual, the true base was actual but the sequencer reported
// observed. Mirrors correct.cpp's learn_errors tally of
// ntnt_counts[quality][to][observed] for each accepted correction.
func (m *Model) Observe(qual int, actual, observed kmer.Base) {
	if actual == kmer.N || observed == kmer.N || actual == observed {
		return
	}
	m.Counts[clampQual(qual)][actual][observed]++
}

// Regress performs Gaussian-kernel nonparametric regression of the raw
// per-quality counts across the quality dimension (sigma=2, matching
// correct.cpp's regress_probs), producing a smoothed Prob table where, for
// each (quality, actual) pair, Prob[q][a][*] sums to approximately 1 across
// the three possible miscalled bases. Call once after all Observe calls and
// before using the model as a correct.SubstitutionModel.
func (m *Model) Regress() {
	const sigma = 2.0
	const sigma2 = sigma * sigma

	var actualCounts [MaxQual][4]uint64
	for q := 1; q < MaxQual; q++ {
		for a := 0; a < 4; a++ {
			for o := 0; o < 4; o++ {
				actualCounts[q][a] += m.Counts[q][a][o]
			}
		}
	}

	for q := 1; q < MaxQual; q++ {
		for a := 0; a < 4; a++ {
			for o := 0; o < 4; o++ {
				var pnum, pden float64
				for qr := 1; qr < MaxQual; qr++ {
					weight := math.Exp(-math.Pow(float64(qr-q), 2) / (2 * sigma2))
					pnum += float64(m.Counts[qr][a][o]) * weight
					pden += float64(actualCounts[qr][a]) * weight
				}
				if pden > 0 {
					m.Prob[q][a][o] = pnum / pden
				}
			}
		}
	}
	m.regressed = true
}

// Ratio implements correct.SubstitutionModel: the likelihood ratio of
// hypothesizing that the true base at a position with Phred quality qual
// was `to` rather than the observed base. This generalizes the flat prior
// (1-p)/3/p by replacing the uniform 1/3 split across the three alternative
// bases with the model's learned miscall distribution once Regress has run;
// a quality/base combination with no signal falls back to 1/3.
func (m *Model) Ratio(qual int, observed, to kmer.Base) float64 {
	if observed == to || observed == kmer.N || to == kmer.N {
		return 0
	}
	frac := 1.0 / 3.0
	if m.regressed {
		if w := m.Prob[clampQual(qual)][to][observed]; w > 0 {
			frac = w
		}
	}
	p := QualToProb(qual)
	return (1.0 - p) * frac / p
}

// QualToProb converts a Phred quality value to the accuracy probability
// used throughout the package, floored at 0.25 exactly as read.New floors
// per-base probabilities.
func QualToProb(qual int) float64 {
	p := 1.0 - math.Pow(10.0, -float64(qual)/10.0)
	if p < 0.25 {
		p = 0.25
	}
	return p
}
