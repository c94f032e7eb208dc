package kmer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func randSeq(n int, r *rand.Rand) []Base {
	seq := make([]Base, n)
	for i := range seq {
		seq[i] = Base(r.Intn(4))
	}
	return seq
}

func TestPackUnpackRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		k := 1 + r.Intn(MaxK)
		seq := randSeq(k, r)
		got := Unpack(Pack(seq), k)
		assert.Equal(t, seq, got)
	}
}

func TestShiftIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for trial := 0; trial < 200; trial++ {
		k := 1 + r.Intn(MaxK)
		seq := randSeq(k, r)
		b := Base(r.Intn(4))

		h := Pack(seq)
		shifted := Shift(h, k, seq[0], b)

		want := append(append([]Base{}, seq[1:]...), b)
		assert.Equal(t, Pack(want), shifted, "k=%d seq=%v b=%v", k, seq, b)
	}
}

func TestReverseComplementInvolution(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for trial := 0; trial < 100; trial++ {
		k := 1 + r.Intn(MaxK)
		seq := randSeq(k, r)
		h := Pack(seq)
		rc := ReverseComplement(h, k)
		rcrc := ReverseComplement(rc, k)
		assert.Equal(t, h, rcrc)
	}
}

func TestReverseComplementKnownValue(t *testing.T) {
	// AATT -> complement TTAA -> reverse AATT; ACGT is likewise its own
	// reverse complement; AAAC -> complement TTTG -> reverse GTTT.
	seq := []Base{A, A, T, T}
	rc := Unpack(ReverseComplement(Pack(seq), 4), 4)
	assert.Equal(t, []Base{A, A, T, T}, rc)

	seq2 := []Base{A, C, G, T}
	rc2 := Unpack(ReverseComplement(Pack(seq2), 4), 4)
	assert.Equal(t, []Base{A, C, G, T}, rc2)

	seq3 := []Base{A, A, A, C}
	rc3 := Unpack(ReverseComplement(Pack(seq3), 4), 4)
	assert.Equal(t, []Base{G, T, T, T}, rc3)
}
