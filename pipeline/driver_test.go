package pipeline

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/readcorrect/correct"
	"github.com/grailbio/readcorrect/read"
	"github.com/grailbio/readcorrect/trust"
)

func buildTrustedSet(t *testing.T, k int, trusted []string) *trust.Set {
	t.Helper()
	var buf bytes.Buffer
	for _, s := range trusted {
		fmt.Fprintf(&buf, "%s\t%d\n", s, 100)
	}
	set := trust.NewSet(k)
	var atgc [2]uint64
	require.NoError(t, set.LoadCounts(&buf, trust.GlobalCutoff(1), &atgc))
	return set
}

func testConfig(set *trust.Set) Config {
	return Config{
		Set:        set,
		Params:     correct.DefaultParams(),
		TrimQ:      20,
		TrimMinLen: 5,
	}
}

// TestProcessUnchangedReadPassesThrough covers testable property 7: a read
// whose every k-mer is already trusted passes through unchanged.
func TestProcessUnchangedReadPassesThrough(t *testing.T) {
	set := buildTrustedSet(t, 4, []string{"AAAA", "AAAC", "AACC"})
	r := read.New("@r1", "AAAACC", "IIIIII", read.Phred33)
	res := Process(r, testConfig(set))
	assert.Equal(t, Unchanged, res.Outcome)
	assert.Equal(t, "AAAACC", res.Out.Sequence())
}

// TestProcessTrimWins is scenario S4: a read whose only untrusted k-mers sit
// entirely in the low-quality 3' tail is fixed by trimming alone once the
// retained prefix clears the minimum length, with no substitutions.
func TestProcessTrimWins(t *testing.T) {
	set := buildTrustedSet(t, 4, []string{
		"AAAA", "AAAC", "AACC", "ACCC", "CCCC", "CCCG", "CCGT",
	})
	seq := "AAAACCCCGT" + "GGGGG"
	qual := "IIIIIIIIII" + "#####"
	r := read.New("@r1", seq, qual, read.Phred33)

	cfg := testConfig(set)
	cfg.TrimQ = 20
	cfg.TrimMinLen = 5

	res := Process(r, cfg)
	require.Equal(t, Trimmed, res.Outcome)
	assert.Equal(t, 5, res.TrimLen)
	assert.Equal(t, "AAAACCCCGT", res.Out.Sequence())
	assert.Equal(t, "IIIIIIIIII", res.Out.Qual)
}

func TestAnnotateHeaderCases(t *testing.T) {
	unchanged := Result{Outcome: Unchanged}
	assert.Equal(t, "@r1", AnnotateHeader("@r1", unchanged, false, false))

	trimmed := Result{Outcome: Trimmed, TrimLen: 5}
	assert.Equal(t, "@r1 trim=5", AnnotateHeader("@r1", trimmed, false, false))

	corrected := Result{Outcome: Searched, Search: correct.Corrected}
	assert.Equal(t, "@r1 correct", AnnotateHeader("@r1", corrected, false, false))

	failed := Result{Outcome: Searched, Search: correct.Ambiguous}
	assert.Equal(t, "@r1 error", AnnotateHeader("@r1", failed, false, false))

	// --headers suppresses annotation unless forced (paired mode).
	assert.Equal(t, "@r1", AnnotateHeader("@r1", failed, true, false))
	assert.Equal(t, "@r1 error", AnnotateHeader("@r1", failed, true, true))
}

func TestShouldEmit(t *testing.T) {
	assert.True(t, ShouldEmit(Result{Outcome: Unchanged}, false))
	assert.True(t, ShouldEmit(Result{Outcome: Searched, Search: correct.Corrected}, false))
	assert.False(t, ShouldEmit(Result{Outcome: Searched, Search: correct.Ambiguous}, false))
	assert.True(t, ShouldEmit(Result{Outcome: Searched, Search: correct.Ambiguous}, true))
}

// TestCombinePairedRoutesSurvivorToSingleFile is scenario S6: a pair where
// R1 corrects cleanly and R2 fails ends up with R1 alone in the first
// single-survivor file, nothing in the second, and nothing in either paired
// .cor file.
func TestCombinePairedRoutesSurvivorToSingleFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "readcorrect_pe_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	in1 := filepath.Join(dir, "in1.fastq")
	in2 := filepath.Join(dir, "in2.fastq")
	require.NoError(t, ioutil.WriteFile(in1, []byte(
		"@r1 correct\nAAAA\n+\nIIII\n"), 0644))
	require.NoError(t, ioutil.WriteFile(in2, []byte(
		"@r1 error\nCCCC\n+\nIIII\n"), 0644))

	cor1 := filepath.Join(dir, "cor1.fastq")
	cor2 := filepath.Join(dir, "cor2.fastq")
	single1 := filepath.Join(dir, "single1.fastq")
	single2 := filepath.Join(dir, "single2.fastq")

	require.NoError(t, CombinePaired(in1, in2, cor1, cor2, single1, single2))

	corBytes1, err := ioutil.ReadFile(cor1)
	require.NoError(t, err)
	assert.Empty(t, corBytes1)

	corBytes2, err := ioutil.ReadFile(cor2)
	require.NoError(t, err)
	assert.Empty(t, corBytes2)

	singleBytes2, err := ioutil.ReadFile(single2)
	require.NoError(t, err)
	assert.Empty(t, singleBytes2)

	singleBytes1, err := ioutil.ReadFile(single1)
	require.NoError(t, err)
	assert.Equal(t, "@r1 correct\nAAAA\n+\nIIII\n", string(singleBytes1))
}

func TestCombinePairedBothSucceedGoesToCorFiles(t *testing.T) {
	dir, err := ioutil.TempDir("", "readcorrect_pe_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	in1 := filepath.Join(dir, "in1.fastq")
	in2 := filepath.Join(dir, "in2.fastq")
	require.NoError(t, ioutil.WriteFile(in1, []byte("@r1\nAAAA\n+\nIIII\n"), 0644))
	require.NoError(t, ioutil.WriteFile(in2, []byte("@r1\nCCCC\n+\nIIII\n"), 0644))

	cor1 := filepath.Join(dir, "cor1.fastq")
	cor2 := filepath.Join(dir, "cor2.fastq")
	single1 := filepath.Join(dir, "single1.fastq")
	single2 := filepath.Join(dir, "single2.fastq")

	require.NoError(t, CombinePaired(in1, in2, cor1, cor2, single1, single2))

	corBytes1, err := ioutil.ReadFile(cor1)
	require.NoError(t, err)
	assert.Equal(t, "@r1\nAAAA\n+\nIIII\n", string(corBytes1))

	singleBytes1, err := ioutil.ReadFile(single1)
	require.NoError(t, err)
	assert.Empty(t, singleBytes1)
}

func TestPlanShardsEvenSplit(t *testing.T) {
	dir, err := ioutil.TempDir("", "readcorrect_shard_test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "in.fastq")
	var buf bytes.Buffer
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&buf, "@r%d\nAAAA\n+\nIIII\n", i)
	}
	require.NoError(t, ioutil.WriteFile(path, buf.Bytes(), 0644))

	offsets, counts, err := planShards(path, 4)
	require.NoError(t, err)
	require.Len(t, offsets, 4)
	require.Len(t, counts, 4)
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 8, total)
	assert.Equal(t, int64(0), offsets[0])
}
