package correct

import (
	"github.com/grailbio/readcorrect/kmer"
	"github.com/grailbio/readcorrect/trust"
)

// Edit asserts that the base at Pos should be replaced with To.
type Edit struct {
	Pos int
	To  kmer.Base
}

// candidate is one node of the branch-and-bound search: an accumulated set
// of edits against the original read, its likelihood under the error model,
// the still-untrusted k-mer start positions after applying those edits, how
// far into the sorted region this candidate has considered, and whether its
// untrusted list is already known not to need a trust re-check (true for a
// candidate that carries no new edit over its parent).
type candidate struct {
	edits        []Edit
	likelihood   float64
	untrusted    []int
	regionCursor int
	checked      bool
}

// baseAt returns the base the candidate's edits assign to position p,
// falling back to the original read's base if no edit touches p.
func baseAt(seq []kmer.Base, edits []Edit, p int) kmer.Base {
	for i := len(edits) - 1; i >= 0; i-- {
		if edits[i].Pos == p {
			return edits[i].To
		}
	}
	return seq[p]
}

// recheck recomputes the untrusted k-mer list for a candidate whose most
// recent edit sits at position `edit`, given the parent's untrusted list
// `parentUntrusted` (sorted ascending) and the candidate's full edit list.
// Only the k-mer windows that could possibly have changed membership — those
// overlapping `edit` — are rescanned; everything else is carried over from
// the parent untouched, per the trust-check rule.
func recheck(seq []kmer.Base, set *trust.Set, parentUntrusted []int, edits []Edit, edit int) []int {
	k := set.K()
	L := len(seq)

	kmerStart := edit - k + 1
	if kmerStart < 0 {
		kmerStart = 0
	}
	kmerEnd := edit
	if kmerEnd > L-k {
		kmerEnd = L - k
	}

	next := make([]int, 0, len(parentUntrusted)+1)
	for _, u := range parentUntrusted {
		if u < kmerStart {
			next = append(next, u)
		}
	}
	if kmerEnd >= kmerStart {
		next = appendRescannedWindows(next, seq, set, edits, kmerStart, kmerEnd)
	}
	for _, u := range parentUntrusted {
		if u > kmerEnd {
			next = append(next, u)
		}
	}
	return next
}

// appendRescannedWindows scans windows [kmerStart, kmerEnd] over the
// corrected sequence and appends the untrusted ones to next. It builds the
// short corrected span once and walks it with the incremental CheckShift
// API, layering a local N count on top since CheckShift alone only detects N
// when it is the base newly entering a window.
func appendRescannedWindows(next []int, seq []kmer.Base, set *trust.Set, edits []Edit, kmerStart, kmerEnd int) []int {
	k := set.K()
	span := make([]kmer.Base, kmerEnd+k-kmerStart)
	for i := range span {
		span[i] = baseAt(seq, edits, kmerStart+i)
	}

	nCount := 0
	for i := 0; i < k; i++ {
		if span[i] == kmer.N {
			nCount++
		}
	}
	trusted, code := set.CheckWithCode(span[0:k])
	if nCount > 0 || !trusted {
		next = append(next, kmerStart)
	}

	for w := kmerStart + 1; w <= kmerEnd; w++ {
		oldLeft := span[w-kmerStart-1]
		newRight := span[w-kmerStart+k-1]
		if oldLeft == kmer.N {
			nCount--
		}
		if newRight == kmer.N {
			nCount++
		}
		var windowTrusted bool
		windowTrusted, code = set.CheckShift(code, oldLeft, newRight)
		if nCount > 0 || !windowTrusted {
			next = append(next, w)
		}
	}
	return next
}
