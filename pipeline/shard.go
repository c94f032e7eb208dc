package pipeline

import (
	"bufio"
	"io"
	"os"
)

// planShards splits a FASTQ file into parallelism disjoint, record-aligned
// chunks (a record is always exactly four lines) and returns the byte
// offset at which each chunk starts and how many records each holds.
// Grounded on original_source/src/correct.cpp's pa_params, which performs
// the same two-pass line count plus boundary scan to let OpenMP threads
// divide a file evenly; here the division feeds traverse.Each instead.
func planShards(path string, parallelism int) (offsets []int64, counts []int, err error) {
	if parallelism < 1 {
		parallelism = 1
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	nRecords, err := countRecords(f)
	if err != nil {
		return nil, nil, err
	}
	if nRecords == 0 {
		return []int64{0}, []int{0}, nil
	}
	if int64(parallelism) > nRecords {
		parallelism = int(nRecords)
	}

	counts = evenSplit(nRecords, parallelism)

	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, err
	}
	offsets, err = scanBoundaries(f, counts)
	if err != nil {
		return nil, nil, err
	}
	return offsets, counts, nil
}

func countRecords(f *os.File) (int64, error) {
	r := bufio.NewReader(f)
	var lines int64
	for {
		_, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, err
		}
		lines++
	}
	return lines / 4, nil
}

func evenSplit(n int64, parts int) []int {
	counts := make([]int, parts)
	base := n / int64(parts)
	rem := n % int64(parts)
	for i := range counts {
		counts[i] = int(base)
		if int64(i) < rem {
			counts[i]++
		}
	}
	return counts
}

func scanBoundaries(f *os.File, counts []int) ([]int64, error) {
	offsets := make([]int64, len(counts))
	r := bufio.NewReader(f)
	var pos int64
	shard, recInShard := 0, 0
	for shard < len(counts) {
		for i := 0; i < 4; i++ {
			line, err := r.ReadString('\n')
			pos += int64(len(line))
			if err != nil {
				if err == io.EOF {
					return offsets, nil
				}
				return nil, err
			}
		}
		recInShard++
		if recInShard == counts[shard] {
			shard++
			recInShard = 0
			if shard < len(counts) {
				offsets[shard] = pos
			}
		}
	}
	return offsets, nil
}
