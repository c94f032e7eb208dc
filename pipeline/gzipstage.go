package pipeline

import (
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// StageInput copies the gzip-compressed file at gzPath, decompressed, into
// a new plaintext file under dir, returning its path. Replaces the source's
// shelling out to `zcat` (-z flag) with an in-process decompressor from
// github.com/klauspost/compress/gzip.
func StageInput(gzPath, dir string) (string, error) {
	in, err := os.Open(gzPath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return "", err
	}
	defer gz.Close()

	outPath := filepath.Join(dir, filepath.Base(stripGzExt(gzPath)))
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, gz); err != nil {
		return "", err
	}
	return outPath, nil
}

// StageOutput gzip-compresses the plaintext file at path into gzPath,
// replacing the source's shelling out to `gzip` on the corrected output.
func StageOutput(path, gzPath string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(gzPath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func stripGzExt(path string) string {
	if filepath.Ext(path) == ".gz" {
		return path[:len(path)-len(".gz")]
	}
	return path
}
