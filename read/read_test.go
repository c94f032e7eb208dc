package read

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailbio/readcorrect/kmer"
)

func TestNewDecodesBasesAndProbability(t *testing.T) {
	r := New("@r1", "ACGTN", "IIIII", Phred33)
	assert.Equal(t, []kmer.Base{kmer.A, kmer.C, kmer.G, kmer.T, kmer.N}, r.Seq)
	assert.Equal(t, "ACGTN", r.Sequence())
	assert.Len(t, r.Prob, 5)
	for _, p := range r.Prob {
		assert.InDelta(t, 1.0-1e-4, p, 1e-6)
	}
}

func TestNewProbabilityFloor(t *testing.T) {
	// Phred 0 and 1 both decode to accuracy below 0.25 unfloored; New must
	// clamp them up so a substitution there is never penalized below chance.
	r := New("@r1", "AA", "!\"", Phred33)
	assert.InDelta(t, 0.25, r.Prob[0], 1e-9)
	assert.InDelta(t, 0.25, r.Prob[1], 1e-9)
}

func TestNewPhred64Offset(t *testing.T) {
	// 'h' = 104, 104-64 = 40, same effective quality as Phred33 'I' (73-33=40).
	p33 := New("@r1", "A", "I", Phred33)
	p64 := New("@r1", "A", "h", Phred64)
	assert.InDelta(t, p33.Prob[0], p64.Prob[0], 1e-9)
}

func TestBaseASCIIRoundTrip(t *testing.T) {
	for _, c := range []byte{'A', 'C', 'G', 'T'} {
		assert.Equal(t, c, ASCIIFromBase(BaseFromASCII(c)))
	}
	assert.Equal(t, kmer.N, BaseFromASCII('X'))
}

func TestTrimPointKeepsWholeReadWhenQualityIsUniform(t *testing.T) {
	qual := "IIIIIIIIII"
	assert.Equal(t, len(qual), TrimPoint(qual, Phred33, 20))
}

func TestTrimPointRemovesLowQualitySuffix(t *testing.T) {
	// 10 bases of high quality followed by 5 of quality far below trimq.
	qual := "IIIIIIIIII#####"
	keep := TrimPoint(qual, Phred33, 20)
	assert.Equal(t, 10, keep)
}

func TestTrimPointZeroTrimqIsNoop(t *testing.T) {
	qual := "#####"
	assert.Equal(t, len(qual), TrimPoint(qual, Phred33, 0))
}

func TestTrimPointPreservesRetainedBasesAndQualities(t *testing.T) {
	// Spec property: trimming never alters bases/qualities at retained positions.
	seq := "ACGTACGTACGTACG"
	qual := "IIIIIIIIII#####"
	r := New("@r1", seq, qual, Phred33)
	keep := TrimPoint(qual, Phred33, 20)
	for i := 0; i < keep; i++ {
		assert.Equal(t, seq[i], ASCIIFromBase(r.Seq[i]))
		assert.Equal(t, qual[i], r.Qual[i])
	}
}
