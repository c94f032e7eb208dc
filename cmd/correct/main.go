// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
correct detects and fixes sequencing errors in a FASTQ file, using a
trusted set of k-mers drawn from a larger corpus as an oracle for which
substrings of a read are plausible. Corrected (or untouched) reads are
written to <prefix>.cor.<suffix> next to each input file; see -h for the
full flag set.
*/

import (
	"bufio"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/grailbio/readcorrect/correct"
	"github.com/grailbio/readcorrect/errormodel"
	"github.com/grailbio/readcorrect/pipeline"
	"github.com/grailbio/readcorrect/read"
	"github.com/grailbio/readcorrect/trust"
)

var (
	fastqPath     = flag.String("r", "", "FASTQ file of reads")
	fastqListPath = flag.String("f", "", "File listing FASTQ file names, one per line, or two per line (space-separated) for paired-end reads")

	merPath = flag.String("m", "", "File of kmer counts in the format 'seq\\tcount', or '-' for stdin")
	binPath = flag.String("b", "", "Previously saved binary trusted-set dump")

	kmerLen = flag.Int("k", 24, "K-mer length used to build or load the trusted set")

	cutoff   = flag.Float64("c", 0, "Global trusted/untrusted kmer count cutoff")
	atCutoff = flag.String("a", "", "File of k+1 AT-content-dependent cutoffs, one per line, replacing -c")

	parallelism = flag.Int("p", 0, "Number of worker goroutines to use; 0 = runtime.NumCPU()")

	trimT = flag.Int("t", 30, "Minimum BWA-trimmed read length for a trim alone to be accepted as the fix; shorter trims fall through to the correction search")
	trimQ = flag.Int("q", 3, "BWA trim quality parameter")

	illuminaQual = flag.Bool("I", false, "Quality values use the 64-offset Illumina scale instead of Phred+33")
	contrailOut  = flag.Bool("C", false, "Write Contrail-style <header>\\t<sequence> output instead of FASTQ")
	uncorrected  = flag.Bool("u", false, "Emit reads that could not be corrected, annotated \" error\", instead of dropping them")

	zipDir = flag.String("z", "", "Stage gzip-compressed input/output through this directory instead of operating on it directly")

	suppressHeaders = flag.Bool("headers", false, "Emit original read headers verbatim, without correction annotations")
)

func correctUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Correct sequencing errors in the FASTQ file(s) provided with -r or -f\n")
	fmt.Fprintf(os.Stderr, "and write trusted and corrected reads to <prefix>.cor.<suffix>.\n\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = correctUsage
	shutdown := grail.Init()
	defer shutdown()

	if *fastqPath == "" && *fastqListPath == "" {
		log.Fatalf("must provide a FASTQ file of reads (-r) or a file listing FASTQ files (-f)")
	}
	if *merPath != "" {
		if *cutoff == 0 && *atCutoff == "" {
			log.Fatalf("must provide a trusted/untrusted kmer cutoff (-c) or an AT-content cutoff file (-a)")
		}
	} else if *binPath == "" {
		log.Fatalf("must provide a file of kmer counts (-m) or a saved trusted-set dump (-b)")
	}

	scale := read.Phred33
	if *illuminaQual {
		scale = read.Phred64
	}

	set, atgc, err := loadTrustedSet()
	if err != nil {
		log.Panicf("loading trusted set: %v", err)
	}
	log.Printf("%d trusted kmers", set.Count())

	prior := errormodel.NewPrior(atgc)
	log.Printf("AT%% = %.4f", 2*prior.A)

	files, pairedEnd, err := fastqFiles()
	if err != nil {
		log.Panicf("reading -f file list: %v", err)
	}

	threads := *parallelism
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	for i, pair := range files {
		if err := processEntry(pair, pairedEnd[i], set, scale, threads); err != nil {
			log.Panicf("correcting %v: %v", pair, err)
		}
	}
	log.Debug.Printf("exiting")
}

// loadTrustedSet builds the trusted k-mer oracle from whichever source (-m
// or -b) the flags name, mirroring correct.cpp's main() kmer-loading
// branch.
func loadTrustedSet() (*trust.Set, [2]uint64, error) {
	var atgc [2]uint64
	set := trust.NewSet(*kmerLen)

	switch {
	case *merPath != "":
		cut, err := loadCutoff()
		if err != nil {
			return nil, atgc, err
		}
		r, closeFn, err := openMerSource()
		if err != nil {
			return nil, atgc, err
		}
		defer closeFn()
		if err := set.LoadCounts(r, cut, &atgc); err != nil {
			return nil, atgc, err
		}

	case *binPath != "":
		if *binPath == "-" {
			return nil, atgc, fmt.Errorf("saved trusted-set dump cannot be piped in; specify a file")
		}
		f, err := os.Open(*binPath)
		if err != nil {
			return nil, atgc, errors.E(err, "opening trusted-set dump", *binPath)
		}
		defer f.Close()
		if err := set.LoadBinary(f, &atgc); err != nil {
			return nil, atgc, errors.E(err, "loading trusted-set dump", *binPath)
		}
	}
	return set, atgc, nil
}

func openMerSource() (*os.File, func() error, error) {
	if *merPath == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(*merPath)
	if err != nil {
		return nil, nil, errors.E(err, "opening kmer count file", *merPath)
	}
	return f, f.Close, nil
}

// loadCutoff builds the trust.Cutoff the -c/-a flags select: a single
// global threshold, or a per-AT-content vector of k+1 thresholds read from
// a file, one per line.
func loadCutoff() (trust.Cutoff, error) {
	if *atCutoff == "" {
		return trust.GlobalCutoff(uint64(*cutoff)), nil
	}
	f, err := os.Open(*atCutoff)
	if err != nil {
		return nil, errors.E(err, "opening AT-cutoff file", *atCutoff)
	}
	defer f.Close()

	var cuts trust.ATCutoff
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad AT cutoff value %q: %w", line, err)
		}
		cuts = append(cuts, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(cuts) != *kmerLen+1 {
		return nil, fmt.Errorf("must specify %d AT cutoffs in %s, found %d", *kmerLen+1, *atCutoff, len(cuts))
	}
	return cuts, nil
}

// fqPair is one unit of work: a single FASTQ file, or a paired-end mate
// pair.
type fqPair struct {
	path1, path2 string
}

// fastqFiles expands -r/-f into the list of files (or mate pairs) to
// correct, mirroring correct.cpp's parse_fastq: -f lines with one field
// are single-end, lines with two fields are paired-end mates.
func fastqFiles() ([]fqPair, []bool, error) {
	if *fastqPath != "" {
		return []fqPair{{path1: *fastqPath}}, []bool{false}, nil
	}

	data, err := ioutil.ReadFile(*fastqListPath)
	if err != nil {
		return nil, nil, errors.E(err, "reading FASTQ file list", *fastqListPath)
	}
	var pairs []fqPair
	var paired []bool
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			pairs = append(pairs, fqPair{path1: fields[0]})
			paired = append(paired, false)
		case 2:
			pairs = append(pairs, fqPair{path1: fields[0], path2: fields[1]})
			paired = append(paired, true)
		default:
			return nil, nil, fmt.Errorf("malformed line in %s: %q", *fastqListPath, line)
		}
	}
	return pairs, paired, nil
}

func processEntry(pair fqPair, paired bool, set *trust.Set, scale read.Scale, threads int) error {
	cfg := pipeline.Config{
		Set:             set,
		Params:          correct.DefaultParams(),
		TrimQ:           *trimQ,
		TrimMinLen:      *trimT,
		EmitUncorrected: *uncorrected,
		Contrail:        *contrailOut,
	}

	if paired {
		return processPaired(pair, cfg, scale, threads)
	}
	return processSingle(pair.path1, cfg, scale, threads)
}

func processSingle(path string, cfg pipeline.Config, scale read.Scale, threads int) error {
	workPath, finish, err := stageInput(path)
	if err != nil {
		return err
	}
	defer finish()

	if model, err := learnModel(workPath, cfg, scale, threads); err != nil {
		return err
	} else {
		cfg.Model = model
	}

	outPath := corPath(workPath)
	opts := pipeline.RunOpts{
		Config:          cfg,
		InPath:          workPath,
		OutPath:         outPath,
		Parallelism:     threads,
		Scale:           scale,
		SuppressHeaders: *suppressHeaders,
	}
	if err := pipeline.Run(opts); err != nil {
		return err
	}
	return stageOutput(outPath, finalPath(path))
}

func processPaired(pair fqPair, cfg pipeline.Config, scale read.Scale, threads int) error {
	work1, finish1, err := stageInput(pair.path1)
	if err != nil {
		return err
	}
	defer finish1()
	work2, finish2, err := stageInput(pair.path2)
	if err != nil {
		return err
	}
	defer finish2()

	model1, err := learnModel(work1, cfg, scale, threads)
	if err != nil {
		return err
	}
	model2, err := learnModel(work2, cfg, scale, threads)
	if err != nil {
		return err
	}

	cfg1, cfg2 := cfg, cfg
	cfg1.Model, cfg2.Model = model1, model2

	opts := pipeline.PairedOpts{
		R1: pipeline.RunOpts{Config: cfg1, InPath: work1, Parallelism: threads, Scale: scale, SuppressHeaders: *suppressHeaders},
		R2: pipeline.RunOpts{Config: cfg2, InPath: work2, Parallelism: threads, Scale: scale, SuppressHeaders: *suppressHeaders},

		CorPath1:    corPath(work1),
		CorPath2:    corPath(work2),
		SinglePath1: singlePath(work1),
		SinglePath2: singlePath(work2),
	}
	if err := pipeline.RunPaired(opts); err != nil {
		return err
	}
	if err := stageOutput(opts.CorPath1, finalPath(pair.path1)); err != nil {
		return err
	}
	return stageOutput(opts.CorPath2, finalPath(pair.path2))
}

// learnModel runs the first, flat-prior correction pass (section 4.E's
// expansion of learn_errors) and regresses its tallies into a usable
// second-pass substitution model.
func learnModel(path string, cfg pipeline.Config, scale read.Scale, threads int) (*errormodel.Model, error) {
	model := errormodel.NewModel()
	if err := pipeline.Learn(path, threads, cfg, scale, model); err != nil {
		return nil, err
	}
	model.Regress()
	return model, nil
}

// corPath renders <prefix>.cor.<suffix> for a given input path, matching
// correct.cpp's combine_output naming.
func corPath(path string) string {
	ext := filepath.Ext(path)
	prefix := strings.TrimSuffix(path, ext)
	return prefix + ".cor" + ext
}

// singlePath renders <prefix>.cor.single.<suffix>, used for the surviving
// mate of a pair where the other mate failed correction.
func singlePath(path string) string {
	ext := filepath.Ext(path)
	prefix := strings.TrimSuffix(path, ext)
	return prefix + ".cor.single" + ext
}

// stripGz removes a trailing .gz suffix, if present.
func stripGz(path string) string {
	if filepath.Ext(path) == ".gz" {
		return strings.TrimSuffix(path, ".gz")
	}
	return path
}

// finalPath renders the externally visible destination for origPath's
// correction result: <prefix>.cor.<suffix>, re-gzipped as <prefix>.cor.<suffix>.gz
// when -z stages a compressed input.
func finalPath(origPath string) string {
	if *zipDir == "" {
		return corPath(origPath)
	}
	return corPath(stripGz(origPath)) + ".gz"
}

// stageInput decompresses path into -z's staging directory when set,
// returning the path to operate on and a cleanup func; otherwise it is a
// no-op passthrough.
func stageInput(path string) (string, func(), error) {
	if *zipDir == "" {
		return path, func() {}, nil
	}
	staged, err := pipeline.StageInput(path, *zipDir)
	if err != nil {
		return "", nil, err
	}
	return staged, func() { os.Remove(staged) }, nil
}

// stageOutput re-compresses the correction result at workCorPath into the
// externally visible destPath when -z is set; otherwise workCorPath already
// is destPath and nothing further is needed.
func stageOutput(workCorPath, destPath string) error {
	if *zipDir == "" {
		return nil
	}
	return pipeline.StageOutput(workCorPath, destPath)
}
