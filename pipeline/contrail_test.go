package pipeline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContrailWriterFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewContrailWriter(&buf)
	require.NoError(t, w.WriteRecord("@r1", "AAAACCCC"))
	require.NoError(t, w.WriteRecord("@r2", "GGGGTTTT"))
	assert.Equal(t, "@r1\tAAAACCCC\n@r2\tGGGGTTTT\n", buf.String())
}

func TestContrailWriterStickyError(t *testing.T) {
	w := NewContrailWriter(&failingWriter{})
	err := w.WriteRecord("@r1", "AAAA")
	require.Error(t, err)
	// Once an error has occurred, further writes return it without retrying.
	assert.Equal(t, err, w.WriteRecord("@r2", "CCCC"))
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, assert.AnError
}
