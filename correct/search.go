package correct

import (
	"container/heap"
	"sort"

	"github.com/grailbio/readcorrect/kmer"
	"github.com/grailbio/readcorrect/trust"
)

// Outcome classifies how a correction search for one read concluded.
type Outcome int

const (
	// Failed means the search queue was exhausted by the pruning floor
	// without ever finding an all-trusted candidate.
	Failed Outcome = iota
	// Ambiguous means a second, distinct trusted candidate was found at the
	// same or lower likelihood as the first; no correction can be trusted.
	Ambiguous
	// Corrected means a unique maximum-likelihood all-trusted candidate was
	// found; Result.Edits holds the substitutions that produce it.
	Corrected
	// LowCoverage means the read's untrusted fraction and mean base-call
	// probability both suggest novel low-coverage sequence rather than
	// sequencing error, and the search was never attempted.
	LowCoverage
	// QueueOverflow means the search queue grew past Params.MaxQueueSize
	// before converging and was abandoned.
	QueueOverflow
	// QuitEarly means the read was flagged as cheap to give up on and no
	// trusted candidate had been found by Params.QuitEarlyQueueSize.
	QuitEarly
)

// Marker is the single-character annotation the driver appends to reads
// that were not corrected.
func (o Outcome) Marker() byte {
	switch o {
	case LowCoverage:
		return '+'
	case QuitEarly:
		return '.'
	default:
		return '-'
	}
}

// SubstitutionModel supplies the likelihood ratio of hypothesizing that the
// true base at a position was `to` rather than the observed base, given the
// position's Phred quality. errormodel.Model implements this interface. A
// nil SubstitutionModel makes Search fall back to a flat 1/3 prior across
// the three alternative bases.
type SubstitutionModel interface {
	Ratio(qual int, observed, to kmer.Base) float64
}

// Params tunes the branch-and-bound search. The queue-size safeguards and
// low-coverage filter thresholds match original_source/src/Read.cpp.
// CorrectMin and TrustSpread have no canonical upstream default — the
// distilled spec calls them "implementation-chosen constants". With the
// defaults, one substitution at p≈0.999 (ratio ≈3.3e-4) clears CorrectMin,
// while two such substitutions (≈1.1e-7) or one at p=0.9999 (≈3.3e-5) do
// not; candidates with several edits pass only at lower-quality positions.
type Params struct {
	CorrectMin  float64
	TrustSpread float64

	LowCovBadNT         int
	LowCovUntrustedFrac float64
	LowCovMeanProb      float64

	MaxQueueSize       int
	QuitEarlyQueueSize int
}

// DefaultParams returns the parameter set used when the driver does not
// override any tunable.
func DefaultParams() Params {
	return Params{
		CorrectMin:  1e-4,
		TrustSpread: 0.01,

		LowCovBadNT:         8,
		LowCovUntrustedFrac: 0.95,
		LowCovMeanProb:      0.99,

		MaxQueueSize:       400000,
		QuitEarlyQueueSize: 30000,
	}
}

// Result is the outcome of searching for a correction to one read.
type Result struct {
	Outcome Outcome
	Edits   []Edit
}

// Search looks for the maximum-likelihood set of single-base substitutions
// that makes every k-mer of seq trusted, restricted to the region implied by
// untrusted (the sorted, ascending start positions of seq's untrusted
// k-mers; must be non-empty). prob holds the per-base accuracy probability
// used to weigh substitutions under the flat prior; qual holds the integer
// Phred quality at each position, used only when model is non-nil.
func Search(seq []kmer.Base, prob []float64, qual []int, untrusted []int, set *trust.Set, params Params, model SubstitutionModel) Result {
	L := len(seq)
	k := set.K()

	region := selectRegion(untrusted, L, k)

	var sumProb float64
	badNT := 0
	for _, pos := range region {
		sumProb += prob[pos]
		if prob[pos] < 0.95 {
			badNT++
		}
	}
	meanProb := sumProb / float64(len(region))
	forfeitEasily := badNT >= params.LowCovBadNT

	if float64(len(untrusted)) > params.LowCovUntrustedFrac*float64(L-k+1) && meanProb > params.LowCovMeanProb {
		return Result{Outcome: LowCoverage}
	}

	sortByAscendingProb(region, prob)

	pq := &priorityQueue{}
	heap.Init(pq)
	seedPos := region[0]
	for _, b := range []kmer.Base{kmer.A, kmer.C, kmer.G, kmer.T} {
		if seq[seedPos] == b {
			heap.Push(pq, &candidate{untrusted: untrusted, likelihood: 1.0, regionCursor: 1, checked: true})
			continue
		}
		like := substitutionLikelihood(prob[seedPos], qualAt(qual, seedPos), seq[seedPos], b, model)
		heap.Push(pq, &candidate{
			edits:        []Edit{{Pos: seedPos, To: b}},
			untrusted:    untrusted,
			likelihood:   like,
			regionCursor: 1,
			checked:      false,
		})
	}

	var best *candidate
	var bestLikelihood float64
	quitEarly := false

	for pq.Len() > 0 {
		if pq.Len() > params.MaxQueueSize {
			return Result{Outcome: QueueOverflow}
		}
		if forfeitEasily && best == nil && pq.Len() > params.QuitEarlyQueueSize {
			quitEarly = true
			break
		}

		cr := heap.Pop(pq).(*candidate)
		beforeCount := len(cr.untrusted)

		if !cr.checked {
			if best != nil {
				if cr.likelihood < bestLikelihood*params.TrustSpread {
					break
				}
			} else if cr.likelihood < params.CorrectMin {
				break
			}

			edit := cr.edits[len(cr.edits)-1].Pos
			cr.untrusted = recheck(seq, set, cr.untrusted, cr.edits, edit)

			if len(cr.untrusted) == 0 {
				if best == nil {
					best = cr
					bestLikelihood = cr.likelihood
				} else {
					return Result{Outcome: Ambiguous}
				}
			}
		}

		// Bail on this branch if the last edit made things sharply worse;
		// otherwise expand to the next region position.
		if len(cr.untrusted)-beforeCount < k/3 && cr.regionCursor < len(region) {
			expand(pq, cr, seq, prob, qual, region, best != nil, bestLikelihood, params, model)
		}
	}

	switch {
	case best != nil:
		return Result{Outcome: Corrected, Edits: best.edits}
	case quitEarly:
		return Result{Outcome: QuitEarly}
	default:
		return Result{Outcome: Failed}
	}
}

// expand pushes cr's children at region[cr.regionCursor] onto pq, applying
// the pruning floor appropriate to whether a trusted candidate has been
// found yet.
func expand(pq *priorityQueue, cr *candidate, seq []kmer.Base, prob []float64, qual []int, region []int, haveBest bool, bestLikelihood float64, params Params, model SubstitutionModel) {
	pos := region[cr.regionCursor]
	for _, b := range []kmer.Base{kmer.A, kmer.C, kmer.G, kmer.T} {
		if seq[pos] == b {
			heap.Push(pq, &candidate{
				edits:        cr.edits,
				untrusted:    cr.untrusted,
				likelihood:   cr.likelihood,
				regionCursor: cr.regionCursor + 1,
				checked:      true,
			})
			continue
		}
		like := cr.likelihood * substitutionLikelihood(prob[pos], qualAt(qual, pos), seq[pos], b, model)
		if haveBest {
			if like < bestLikelihood*params.TrustSpread {
				continue
			}
		} else if like < params.CorrectMin*params.TrustSpread {
			continue
		}
		edits := make([]Edit, len(cr.edits), len(cr.edits)+1)
		copy(edits, cr.edits)
		edits = append(edits, Edit{Pos: pos, To: b})
		heap.Push(pq, &candidate{
			edits:        edits,
			untrusted:    cr.untrusted,
			likelihood:   like,
			regionCursor: cr.regionCursor + 1,
			checked:      false,
		})
	}
}

func substitutionLikelihood(prob float64, qual int, observed, to kmer.Base, model SubstitutionModel) float64 {
	if model != nil {
		return model.Ratio(qual, observed, to)
	}
	return (1.0 - prob) / 3.0 / prob
}

// qualAt returns qual[pos], or 0 if qual is nil (model is also nil whenever
// qual is, so qualAt's result is then never actually consulted).
func qualAt(qual []int, pos int) int {
	if qual == nil {
		return 0
	}
	return qual[pos]
}

// sortByAscendingProb orders region positions from least to most confident,
// replacing the source's hand-rolled quicksort with the standard sort
// primitive per Design Note 9.
func sortByAscendingProb(region []int, prob []float64) {
	sort.Slice(region, func(i, j int) bool {
		return prob[region[i]] < prob[region[j]]
	})
}

// priorityQueue is a container/heap max-heap over candidates, ordered by
// likelihood, ties broken toward fewer region edits considered so shallower
// candidates win ties.
type priorityQueue []*candidate

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].likelihood != pq[j].likelihood {
		return pq[i].likelihood > pq[j].likelihood
	}
	return pq[i].regionCursor < pq[j].regionCursor
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x interface{}) {
	*pq = append(*pq, x.(*candidate))
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}
