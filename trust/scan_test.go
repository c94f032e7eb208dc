package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/readcorrect/kmer"
)

func naiveScan(t *testing.T, seq []kmer.Base, set *Set) []int {
	t.Helper()
	k := set.K()
	var out []int
	for i := 0; i+k <= len(seq); i++ {
		if !set.Check(seq[i : i+k]) {
			out = append(out, i)
		}
	}
	return out
}

func TestScanUntrustedMatchesNaiveScan(t *testing.T) {
	set, _ := buildSet(t, 4, []string{"AAAA", "AAAC", "AACC", "ACCG", "CCGT"}, GlobalCutoff(1))
	seq := seqBases("AAAGCCGT")
	require.Equal(t, naiveScan(t, seq, set), set.ScanUntrusted(seq))
}

func TestScanUntrustedHandlesInteriorN(t *testing.T) {
	set, _ := buildSet(t, 4, []string{"AAAA", "AAAC", "AACC", "ACCG", "CCGT"}, GlobalCutoff(1))
	seq := seqBases("AAANCCGT")
	want := naiveScan(t, seq, set)
	got := set.ScanUntrusted(seq)
	assert.Equal(t, want, got)
}

func TestScanUntrustedShortReadReturnsNil(t *testing.T) {
	set, _ := buildSet(t, 5, []string{"AAAAA"}, GlobalCutoff(1))
	assert.Nil(t, set.ScanUntrusted(seqBases("AAA")))
}
