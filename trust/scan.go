package trust

import "github.com/grailbio/readcorrect/kmer"

// ScanUntrusted returns the start positions of every untrusted k-mer window
// in seq, scanning incrementally with CheckShift after an initial
// CheckWithCode rather than re-packing each window from scratch. Mirrors
// original_source/src/Read.cpp's check_trust() full-read pass, the one that
// seeds the correction engine's initial untrusted-position list before any
// edit has been applied.
func (s *Set) ScanUntrusted(seq []kmer.Base) []int {
	k := s.k
	L := len(seq)
	if L < k {
		return nil
	}
	var out []int

	nCount := 0
	for i := 0; i < k; i++ {
		if seq[i] == kmer.N {
			nCount++
		}
	}
	trusted, code := s.CheckWithCode(seq[0:k])
	if nCount > 0 || !trusted {
		out = append(out, 0)
	}

	for w := 1; w+k <= L; w++ {
		oldLeft := seq[w-1]
		newRight := seq[w+k-1]
		if oldLeft == kmer.N {
			nCount--
		}
		if newRight == kmer.N {
			nCount++
		}
		var windowTrusted bool
		windowTrusted, code = s.CheckShift(code, oldLeft, newRight)
		if nCount > 0 || !windowTrusted {
			out = append(out, w)
		}
	}
	return out
}
