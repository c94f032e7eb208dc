package pipeline

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"

	"github.com/grailbio/readcorrect/correct"
	"github.com/grailbio/readcorrect/encoding/fastq"
	"github.com/grailbio/readcorrect/errormodel"
	"github.com/grailbio/readcorrect/read"
)

type learnOpts struct {
	Config
	Scale read.Scale
}

// maxLearnSamples caps the number of corrections tallied into the error
// model before a learning pass gives up early, matching learn_errors'
// `samples > 200000` early-exit in the original source.
const maxLearnSamples = 200000

// Learn runs a first correction pass over path with a flat substitution
// prior (Config.Model is ignored) and tallies every accepted correction
// into model via Observe, so a caller can Regress it before a second,
// real pass. Mirrors original_source/src/correct.cpp's learn_errors: same
// sharded scan, same "only count corrections from a read that ends up
// fully trusted" filter, same sample cap.
func Learn(path string, parallelism int, cfg Config, scale read.Scale, model *errormodel.Model) error {
	cfg.Model = nil
	opts := learnOpts{Config: cfg, Scale: scale}

	offsets, counts, err := planShards(path, parallelism)
	if err != nil {
		return err
	}

	var samples int64
	partials := make([]*errormodel.Model, len(offsets))
	e := errors.Once{}
	e.Set(traverse.Each(len(offsets), func(shard int) error {
		partial := errormodel.NewModel()
		partials[shard] = partial
		return learnShard(path, offsets[shard], counts[shard], opts, partial, &samples)
	}))
	if err := e.Err(); err != nil {
		return err
	}

	for _, p := range partials {
		mergeModel(model, p)
	}
	return nil
}

func learnShard(path string, off int64, n int, opts learnOpts, partial *errormodel.Model, samples *int64) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	if _, err := in.Seek(off, io.SeekStart); err != nil {
		return err
	}

	scanner := fastq.NewScanner(in, fastq.All)
	var rec fastq.Read
	for i := 0; i < n; i++ {
		if atomic.LoadInt64(samples) > maxLearnSamples {
			return nil
		}
		if !scanner.Scan(&rec) {
			return scanner.Err()
		}
		r := read.New(rec.ID, rec.Seq, rec.Qual, opts.Scale)
		observeCorrection(r, opts.Config, partial, samples)
	}
	return nil
}

func observeCorrection(r *read.Read, cfg Config, partial *errormodel.Model, samples *int64) {
	res := Process(r, cfg)
	if res.Outcome != Searched || res.Search != correct.Corrected {
		return
	}
	qual := qualities(r)
	for _, e := range res.Edits {
		partial.Observe(qual[e.Pos], e.To, r.Seq[e.Pos])
		atomic.AddInt64(samples, 1)
	}
}

func mergeModel(dst, src *errormodel.Model) {
	for q := 0; q < errormodel.MaxQual; q++ {
		for a := 0; a < 4; a++ {
			for o := 0; o < 4; o++ {
				dst.Counts[q][a][o] += src.Counts[q][a][o]
			}
		}
	}
}
