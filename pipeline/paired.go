package pipeline

import (
	"io/ioutil"
	"os"
	"strings"

	"github.com/grailbio/readcorrect/encoding/fastq"
)

// PairedOpts configures a paired-end correction run: each mate file is
// corrected independently, then the results are combined according to
// section 4.E's paired-end semantics.
type PairedOpts struct {
	R1, R2 RunOpts

	// CorPath1/CorPath2 receive pairs where both mates corrected
	// successfully. SinglePath1/SinglePath2 receive the surviving mate of a
	// pair where exactly one side failed. Pairs where both mates failed are
	// dropped entirely.
	CorPath1, CorPath2       string
	SinglePath1, SinglePath2 string
}

// RunPaired corrects both mate files independently, forcing every record to
// be written with a failure annotation (PairedMode), then combines them via
// CombinePaired. Mirrors original_source/src/correct.cpp's pe_code-driven
// correct_reads followed by combine_output_paired.
func RunPaired(opts PairedOpts) error {
	opts.R1.PairedMode = true
	opts.R2.PairedMode = true

	tmp1, err := ioutil.TempFile(opts.R1.TempDir, "readcorrect_pe1_*.fastq")
	if err != nil {
		return err
	}
	tmp1.Close()
	defer os.Remove(tmp1.Name())

	tmp2, err := ioutil.TempFile(opts.R2.TempDir, "readcorrect_pe2_*.fastq")
	if err != nil {
		return err
	}
	tmp2.Close()
	defer os.Remove(tmp2.Name())

	opts.R1.OutPath = tmp1.Name()
	opts.R2.OutPath = tmp2.Name()

	if err := Run(opts.R1); err != nil {
		return err
	}
	if err := Run(opts.R2); err != nil {
		return err
	}

	return CombinePaired(tmp1.Name(), tmp2.Name(), opts.CorPath1, opts.CorPath2, opts.SinglePath1, opts.SinglePath2)
}

// CombinePaired scans two fully-corrected mate files in lockstep (via
// fastq.PairScanner) and routes each pair to the paired or single-survivor
// output depending on which mates carry the " error" header annotation.
// Grounded on original_source/src/correct.cpp's combine_output_paired,
// which performs the exact same header substring check.
func CombinePaired(inPath1, inPath2, corPath1, corPath2, singlePath1, singlePath2 string) error {
	in1, err := os.Open(inPath1)
	if err != nil {
		return err
	}
	defer in1.Close()
	in2, err := os.Open(inPath2)
	if err != nil {
		return err
	}
	defer in2.Close()

	cor1, err := os.Create(corPath1)
	if err != nil {
		return err
	}
	defer cor1.Close()
	cor2, err := os.Create(corPath2)
	if err != nil {
		return err
	}
	defer cor2.Close()
	single1, err := os.Create(singlePath1)
	if err != nil {
		return err
	}
	defer single1.Close()
	single2, err := os.Create(singlePath2)
	if err != nil {
		return err
	}
	defer single2.Close()

	ps := fastq.NewPairScanner(in1, in2, fastq.All)
	corW1, corW2 := fastq.NewWriter(cor1), fastq.NewWriter(cor2)
	singleW1, singleW2 := fastq.NewWriter(single1), fastq.NewWriter(single2)

	var r1, r2 fastq.Read
	for ps.Scan(&r1, &r2) {
		failed1 := strings.Contains(r1.ID, "error")
		failed2 := strings.Contains(r2.ID, "error")
		switch {
		case !failed1 && !failed2:
			if err := corW1.Write(&r1); err != nil {
				return err
			}
			if err := corW2.Write(&r2); err != nil {
				return err
			}
		case !failed1 && failed2:
			if err := singleW1.Write(&r1); err != nil {
				return err
			}
		case failed1 && !failed2:
			if err := singleW2.Write(&r2); err != nil {
				return err
			}
		}
	}
	return ps.Err()
}
