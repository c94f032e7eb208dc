// Package read models a single FASTQ record together with the per-base
// accuracy probabilities the correction engine reasons about, and
// implements the BWA 3'-end quality trim used as a cheap first pass before
// the correction search is attempted.
package read

import (
	"math"

	"github.com/grailbio/readcorrect/kmer"
)

// Scale selects how quality characters are decoded into Phred scores.
type Scale int

const (
	// Phred33 is the default Sanger/Illumina-1.8+ quality encoding.
	Phred33 Scale = iota
	// Phred64 is the legacy Illumina quality encoding (-I on the CLI).
	Phred64
)

// Offset returns the ASCII value corresponding to Phred quality 0.
func (s Scale) Offset() byte {
	if s == Phred64 {
		return 64
	}
	return 33
}

// MinQualChar is the quality character written for machine-assigned (i.e.
// corrected) bases, signaling the lowest possible confidence.
func (s Scale) MinQualChar() byte {
	if s == Phred64 {
		return 'B'
	}
	return '#'
}

// Read is a single FASTQ record decoded for correction: its header, its
// sequence as packed Bases, the raw quality string (kept verbatim for
// output), and the per-base accuracy probability derived from quality.
type Read struct {
	Header string
	Seq    []kmer.Base
	Qual   string
	Prob   []float64
	Scale  Scale
}

// New builds a Read from raw FASTQ fields. Quality values of 0 or 1 decode
// to a probability floor of 0.25, so that a substitution at such a base can
// never come out less likely than leaving it alone.
func New(header, seq, qual string, scale Scale) *Read {
	bases := make([]kmer.Base, len(seq))
	for i := 0; i < len(seq); i++ {
		bases[i] = BaseFromASCII(seq[i])
	}
	offset := float64(scale.Offset())
	prob := make([]float64, len(qual))
	for i := 0; i < len(qual); i++ {
		q := float64(qual[i]) - offset
		p := 1.0 - math.Pow(10.0, -q/10.0)
		if p < 0.25 {
			p = 0.25
		}
		prob[i] = p
	}
	return &Read{Header: header, Seq: bases, Qual: qual, Prob: prob, Scale: scale}
}

// Len returns the read length.
func (r *Read) Len() int { return len(r.Seq) }

// BaseFromASCII converts a single FASTQ sequence character to a Base; any
// character outside {A,C,G,T} (case-insensitive) decodes to N.
func BaseFromASCII(c byte) kmer.Base {
	switch c {
	case 'A', 'a':
		return kmer.A
	case 'C', 'c':
		return kmer.C
	case 'G', 'g':
		return kmer.G
	case 'T', 't':
		return kmer.T
	default:
		return kmer.N
	}
}

var baseASCII = [...]byte{'A', 'C', 'G', 'T', 'N'}

// ASCIIFromBase is the inverse of BaseFromASCII for the five-symbol alphabet.
func ASCIIFromBase(b kmer.Base) byte {
	return baseASCII[b]
}

// Sequence renders the read's bases back to an ASCII string.
func (r *Read) Sequence() string {
	out := make([]byte, len(r.Seq))
	for i, b := range r.Seq {
		out[i] = ASCIIFromBase(b)
	}
	return string(out)
}

// TrimPoint computes the BWA 3'-end trim point: the length to keep after
// removing the suffix that maximizes the cumulative sum of (trimq - q[i]),
// run from the end of the read backwards and stopped as soon as that sum
// turns negative. It returns len(qual) when trimq <= 0 or no suffix has a
// positive sum.
func TrimPoint(qual string, scale Scale, trimq int) int {
	n := len(qual)
	if trimq <= 0 {
		return n
	}
	offset := int(scale.Offset())
	keep := n
	sum, max := 0, 0
	for i := n - 1; i >= 0; i-- {
		sum += trimq - (int(qual[i]) - offset)
		if sum < 0 {
			break
		}
		if sum > max {
			max = sum
			keep = i
		}
	}
	return keep
}
