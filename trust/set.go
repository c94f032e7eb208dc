// Package trust implements the trusted k-mer membership oracle: a compact,
// read-mostly bit array over the full 4^k key space that a read's k-mers are
// checked against, plus an O(1) incremental query used by the correction
// search to re-check a candidate after a single-base edit.
package trust

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"math/bits"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/grailbio/readcorrect/kmer"
)

// Cutoff decides, for a k-mer with a given AT-content, the minimum observed
// count required to admit it into the trusted set.
type Cutoff interface {
	threshold(atCount int) uint64
}

// GlobalCutoff admits any k-mer whose count meets a single fixed threshold,
// regardless of composition.
type GlobalCutoff uint64

func (c GlobalCutoff) threshold(int) uint64 { return uint64(c) }

// ATCutoff admits a k-mer based on a threshold that varies with its AT
// content. len(c) must equal k+1; ATCutoff[i] is the cutoff applied to
// k-mers with exactly i A/T bases.
type ATCutoff []uint64

func (c ATCutoff) threshold(atCount int) uint64 { return c[atCount] }

// Set is a bit-indexed membership set over all 4^k possible k-mers.
type Set struct {
	k    int
	bits []uint64 // length ceil(4^k / 64)
}

// NewSet allocates an empty trusted set for k-mers of length k.
func NewSet(k int) *Set {
	if k <= 0 || k > kmer.MaxK {
		panic("trust: k out of range")
	}
	numKmers := uint64(1) << uint(2*k)
	words := (numKmers + 63) / 64
	return &Set{k: k, bits: make([]uint64, words)}
}

// K returns the k-mer length this set was built for.
func (s *Set) K() int { return s.k }

func (s *Set) testBit(idx kmer.Code) bool {
	return s.bits[uint64(idx)/64]&(uint64(1)<<(uint64(idx)%64)) != 0
}

func (s *Set) setBit(idx kmer.Code) {
	s.bits[uint64(idx)/64] |= uint64(1) << (uint64(idx) % 64)
}

// Count returns the number of k-mers currently marked trusted.
func (s *Set) Count() int {
	n := 0
	for _, w := range s.bits {
		n += bits.OnesCount64(w)
	}
	return n
}

// atCount returns the number of A/T bases among seq.
func atCount(seq []kmer.Base) int {
	n := 0
	for _, b := range seq {
		if b == kmer.A || b == kmer.T {
			n++
		}
	}
	return n
}

// LoadCounts reads `<sequence>\t<count>` records from r (the calibration
// corpus) and admits each k-mer whose count meets cutoff. Admitted k-mers,
// and their reverse complements, are marked trusted. atgc accumulates the
// A+T and G+C base counts over all admitted k-mers, for use as a flat
// nucleotide prior downstream. Malformed lines are skipped with a warning;
// an unreadable source is a fatal error.
func (s *Set) LoadCounts(r io.Reader, cutoff Cutoff, atgc *[2]uint64) error {
	scanner := bufio.NewScanner(r)
	// Count lines can be long for large k; give the scanner generous headroom.
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 2 {
			log.Error.Printf("trust: skipping malformed count line %d", line)
			continue
		}
		count, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			log.Error.Printf("trust: skipping count line %d with bad count %q", line, fields[1])
			continue
		}
		seq, ok := toBases(fields[0])
		if !ok || len(seq) != s.k {
			log.Error.Printf("trust: skipping count line %d with bad sequence %q", line, fields[0])
			continue
		}
		if hasN(seq) {
			// Never inserted: an N-containing k-mer can never be trusted.
			continue
		}
		if count < cutoff.threshold(atCount(seq)) {
			continue
		}

		h := kmer.Pack(seq)
		s.setBit(h)
		s.setBit(kmer.ReverseComplement(h, s.k))

		at := uint64(atCount(seq))
		atgc[0] += at
		atgc[1] += uint64(len(seq)) - at
	}
	if err := scanner.Err(); err != nil {
		return errors.E(err, "trust: reading count source")
	}
	return nil
}

// dumpFormat is the on-disk representation for LoadBinary/Save.
type dumpFormat struct {
	K    int
	Bits []uint64
	ATGC [2]uint64
}

// Save serializes the set and the accompanying atgc totals so LoadBinary can
// restore them later; the byte layout is an implementation detail, not a
// wire contract, so we use encoding/gob rather than inventing one.
func (s *Set) Save(w io.Writer, atgc [2]uint64) error {
	d := dumpFormat{K: s.k, Bits: s.bits, ATGC: atgc}
	if err := gob.NewEncoder(w).Encode(&d); err != nil {
		return errors.E(err, "trust: writing binary dump")
	}
	return nil
}

// LoadBinary restores a set previously written by Save.
func (s *Set) LoadBinary(r io.Reader, atgc *[2]uint64) error {
	var d dumpFormat
	if err := gob.NewDecoder(r).Decode(&d); err != nil {
		return errors.E(err, "trust: reading binary dump")
	}
	if d.K != s.k {
		return errors.E(fmt.Sprintf("trust: binary dump built for k=%d, set expects k=%d", d.K, s.k))
	}
	s.bits = d.Bits
	*atgc = d.ATGC
	return nil
}

func toBases(seq string) ([]kmer.Base, bool) {
	out := make([]kmer.Base, len(seq))
	for i := 0; i < len(seq); i++ {
		switch seq[i] {
		case 'A', 'a':
			out[i] = kmer.A
		case 'C', 'c':
			out[i] = kmer.C
		case 'G', 'g':
			out[i] = kmer.G
		case 'T', 't':
			out[i] = kmer.T
		case 'N', 'n':
			out[i] = kmer.N
		default:
			return nil, false
		}
	}
	return out, true
}

func hasN(seq []kmer.Base) bool {
	for _, b := range seq {
		if b == kmer.N {
			return true
		}
	}
	return false
}

// Check reports whether the k-mer encoded by seq (len(seq) == K()) is
// trusted. A window containing N is always untrusted.
func (s *Set) Check(seq []kmer.Base) bool {
	trusted, _ := s.CheckWithCode(seq)
	return trusted
}

// CheckWithCode is like Check but also returns the packed key, for seeding a
// subsequent chain of CheckShift calls. If seq contains N, the returned code
// substitutes A (0) for every N so that rolling the window forward remains
// well defined; the boolean result is still correctly false in that case.
func (s *Set) CheckWithCode(seq []kmer.Base) (bool, kmer.Code) {
	clean := seq
	if hasN(seq) {
		clean = make([]kmer.Base, len(seq))
		for i, b := range seq {
			if b == kmer.N {
				b = kmer.A
			}
			clean[i] = b
		}
	}
	h := kmer.Pack(clean)
	if hasN(seq) {
		return false, h
	}
	return s.testBit(h), h
}

// CheckShift is the incremental counterpart to CheckWithCode: given the code
// for the k-mer starting at position i, it computes membership and the code
// for position i+1 in time independent of k. oldLeft is the base that is
// leaving the window (the true base at position i); newRight is the base
// entering it (the true base at position i+k).
//
// CheckShift only detects N when it is the base newly entering the window
// (newRight == kmer.N); a caller scanning a span that may contain an N at an
// interior position carried over from an earlier step is responsible for
// tracking that separately (e.g. via a precomputed count of N positions in
// the span), since CheckShift's whole purpose is to avoid re-scanning the
// k-1 bases that did not change.
func (s *Set) CheckShift(prev kmer.Code, oldLeft, newRight kmer.Base) (bool, kmer.Code) {
	insert := newRight
	if insert == kmer.N {
		insert = kmer.A
	}
	h := kmer.Shift(prev, s.k, oldLeft, insert)
	if newRight == kmer.N {
		return false, h
	}
	return s.testBit(h), h
}
