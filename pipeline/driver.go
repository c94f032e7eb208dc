package pipeline

import (
	"io"
	"io/ioutil"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"

	"github.com/grailbio/readcorrect/correct"
	"github.com/grailbio/readcorrect/encoding/fastq"
	"github.com/grailbio/readcorrect/read"
)

// RunOpts configures one end-to-end correction pass over a FASTQ file.
type RunOpts struct {
	Config

	InPath          string
	OutPath         string
	Parallelism     int
	TempDir         string
	Scale           read.Scale
	SuppressHeaders bool

	// PairedMode forces every record to be emitted (ignoring EmitUncorrected)
	// with " error" annotated on failure even if SuppressHeaders is set, so
	// that CombinePaired can pair mates up by scanning both files' headers.
	// Mirrors correct.cpp's `!orig_headers || pe_code > 0` annotation rule.
	PairedMode bool
}

// Run shards InPath into Parallelism disjoint record ranges, corrects each
// chunk concurrently via traverse.Each (grounded on
// pileup/snp/pileup.go's shard-worker/per-job-tempfile pattern), and
// concatenates the per-chunk results into OutPath in original record
// order.
func Run(opts RunOpts) error {
	offsets, counts, err := planShards(opts.InPath, opts.Parallelism)
	if err != nil {
		return err
	}
	nShard := len(offsets)

	tmpFiles := make([]*os.File, nShard)
	defer func() {
		for _, f := range tmpFiles {
			if f != nil {
				f.Close()
				os.Remove(f.Name())
			}
		}
	}()
	for i := range tmpFiles {
		f, err := ioutil.TempFile(opts.TempDir, "readcorrect_*.fastq")
		if err != nil {
			return err
		}
		tmpFiles[i] = f
	}

	e := errors.Once{}
	e.Set(traverse.Each(nShard, func(shard int) error {
		return processShard(opts, offsets[shard], counts[shard], tmpFiles[shard])
	}))
	if err := e.Err(); err != nil {
		return err
	}

	log.Printf("pipeline.Run: %d shards complete, concatenating", nShard)
	return concatenate(tmpFiles, opts.OutPath)
}

// processShard corrects exactly n records of the input file starting at
// byte offset off, writing the resulting FASTQ records to out.
func processShard(opts RunOpts, off int64, n int, out *os.File) error {
	in, err := os.Open(opts.InPath)
	if err != nil {
		return err
	}
	defer in.Close()
	if _, err := in.Seek(off, io.SeekStart); err != nil {
		return err
	}

	scanner := fastq.NewScanner(in, fastq.All)
	writer := fastq.NewWriter(out)
	contrailWriter := NewContrailWriter(out)

	var rec fastq.Read
	for i := 0; i < n; i++ {
		if !scanner.Scan(&rec) {
			if err := scanner.Err(); err != nil {
				return err
			}
			break
		}
		outRec, emit := correctOne(&rec, opts)
		if !emit {
			continue
		}
		if opts.Contrail {
			if err := contrailWriter.WriteRecord(outRec.ID, outRec.Seq); err != nil {
				return err
			}
			continue
		}
		if err := writer.Write(outRec); err != nil {
			return err
		}
	}
	return nil
}

// correctOne runs a single scanned FASTQ record through the trim-then-
// correct pipeline and renders the result back into FASTQ fields.
func correctOne(rec *fastq.Read, opts RunOpts) (*fastq.Read, bool) {
	r := read.New(rec.ID, rec.Seq, rec.Qual, opts.Scale)
	res := Process(r, opts.Config)
	if res.Outcome == Searched && res.Search == correct.QueueOverflow {
		log.Error.Printf("pipeline: correction queue overflow on %s", rec.ID)
	}

	if !opts.PairedMode && !ShouldEmit(res, opts.Config.EmitUncorrected) {
		return nil, false
	}

	header := AnnotateHeader(rec.ID, res, opts.SuppressHeaders, opts.PairedMode)
	return &fastq.Read{
		ID:   header,
		Seq:  res.Out.Sequence(),
		Unk:  rec.Unk,
		Qual: res.Out.Qual,
	}, true
}

// concatenate appends each shard's temp file to outPath, in shard order,
// matching section 5's "output order within a chunk mirrors input order;
// across chunks, concatenation is done sequentially after all workers
// finish" ordering guarantee.
func concatenate(tmpFiles []*os.File, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	for _, f := range tmpFiles {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.Copy(out, f); err != nil {
			return err
		}
	}
	return nil
}
