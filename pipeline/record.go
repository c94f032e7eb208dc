// Package pipeline drives the correction engine over whole FASTQ files: it
// shards a file into disjoint record ranges, runs the per-read quality-trim
// and correction-search pipeline across worker goroutines, and recombines
// the per-chunk results (including paired-end interleaving) into the final
// output files.
package pipeline

import (
	"github.com/grailbio/readcorrect/correct"
	"github.com/grailbio/readcorrect/kmer"
	"github.com/grailbio/readcorrect/read"
	"github.com/grailbio/readcorrect/trust"
)

// Config carries the tunables a driver run needs beyond the trusted set
// itself: trim parameters, the branch-and-bound search parameters, and the
// substitution model to use (nil for a flat prior on a first pass).
type Config struct {
	Set    *trust.Set
	Model  correct.SubstitutionModel
	Params correct.Params

	TrimQ      int // BWA trim quality threshold; <= 0 disables trimming.
	TrimMinLen int // minimum post-trim length to accept a trim-only fix.

	EmitUncorrected bool // -u: emit failed reads verbatim, annotated " error"
	Contrail        bool // -C: write <header>\t<sequence> instead of FASTQ
}

// Outcome classifies how one record's processing concluded, beyond what
// correct.Outcome tracks: Unchanged and Trimmed are resolved before the
// search is ever invoked.
type Outcome int

const (
	// Unchanged means every k-mer was already trusted; the record passes
	// through untouched.
	Unchanged Outcome = iota
	// Trimmed means a 3'-end quality trim alone made the retained prefix
	// all-trusted; no substitution was needed.
	Trimmed
	// Searched means correct.Search was invoked; see Result.Search for its
	// outcome.
	Searched
)

// Result is the outcome of processing one read.
type Result struct {
	Outcome Outcome
	Search  correct.Outcome // valid only when Outcome == Searched

	Out      *read.Read     // the (possibly trimmed/corrected) record to emit
	TrimLen  int            // bases removed from the 3' end; 0 if untrimmed
	NumEdits int            // substitutions applied; 0 unless Search == Corrected
	Edits    []correct.Edit // the edits applied, against the original (pre-trim) read
}

// Process runs one read through the trim-then-correct pipeline described in
// section 4.E: if it is already all-trusted, emit verbatim; otherwise try a
// BWA 3'-end quality trim first, and only fall back to the branch-and-bound
// search if trimming alone does not clear every window.
func Process(r *read.Read, cfg Config) Result {
	untrusted := cfg.Set.ScanUntrusted(r.Seq)
	if len(untrusted) == 0 {
		return Result{Outcome: Unchanged, Out: r}
	}

	if cfg.TrimQ > 0 {
		if trimmed, ok := tryTrim(r, cfg); ok {
			return trimmed
		}
	}

	qual := qualities(r)
	params := cfg.Params
	if (params == correct.Params{}) {
		params = correct.DefaultParams()
	}
	result := correct.Search(r.Seq, r.Prob, qual, untrusted, cfg.Set, params, cfg.Model)

	out := cloneRead(r)
	numEdits := 0
	var edits []correct.Edit
	if result.Outcome == correct.Corrected {
		applyEdits(out, result.Edits)
		numEdits = len(result.Edits)
		edits = result.Edits
	}

	return Result{
		Outcome:  Searched,
		Search:   result.Outcome,
		Out:      out,
		NumEdits: numEdits,
		Edits:    edits,
	}
}

func qualities(r *read.Read) []int {
	offset := int(r.Scale.Offset())
	qual := make([]int, len(r.Qual))
	for i := 0; i < len(r.Qual); i++ {
		qual[i] = int(r.Qual[i]) - offset
	}
	return qual
}

// tryTrim attempts the BWA 3'-end trim and reports whether the retained
// prefix, once trimmed, is both long enough and fully trusted.
func tryTrim(r *read.Read, cfg Config) (Result, bool) {
	keep := read.TrimPoint(r.Qual, r.Scale, cfg.TrimQ)
	if keep == r.Len() || keep < cfg.TrimMinLen {
		return Result{}, false
	}
	trimmedSeq := r.Seq[:keep]
	if len(cfg.Set.ScanUntrusted(trimmedSeq)) != 0 {
		return Result{}, false
	}
	out := &read.Read{
		Header: r.Header,
		Seq:    append([]kmer.Base(nil), trimmedSeq...),
		Qual:   r.Qual[:keep],
		Prob:   append([]float64(nil), r.Prob[:keep]...),
		Scale:  r.Scale,
	}
	return Result{
		Outcome: Trimmed,
		Out:     out,
		TrimLen: r.Len() - keep,
	}, true
}

func cloneRead(r *read.Read) *read.Read {
	return &read.Read{
		Header: r.Header,
		Seq:    append([]kmer.Base(nil), r.Seq...),
		Qual:   r.Qual,
		Prob:   r.Prob,
		Scale:  r.Scale,
	}
}

// applyEdits rewrites out's bases at each edit position and marks the
// quality character at that position as machine-assigned (the minimum
// quality value for the read's scale), per section 4.E.
func applyEdits(out *read.Read, edits []correct.Edit) {
	qualBytes := []byte(out.Qual)
	minQual := out.Scale.MinQualChar()
	for _, e := range edits {
		out.Seq[e.Pos] = e.To
		qualBytes[e.Pos] = minQual
	}
	out.Qual = string(qualBytes)
}
