package pipeline

import (
	"strconv"

	"github.com/grailbio/readcorrect/correct"
)

// AnnotateHeader appends the section 6 header annotations to header, unless
// suppressed by the --headers flag. A base change earns " correct"; a
// nonzero trim earns " trim=<n>"; a failed search earns " error" (the
// caller decides whether forceAnnotate should apply regardless of
// suppressHeaders, matching original_source/src/correct.cpp's
// `!orig_headers || pe_code > 0` condition for paired-end output).
func AnnotateHeader(header string, res Result, suppressHeaders, forceAnnotate bool) string {
	if suppressHeaders && !forceAnnotate {
		return header
	}
	switch res.Outcome {
	case Unchanged:
		return header
	case Trimmed:
		return header + " trim=" + strconv.Itoa(res.TrimLen)
	case Searched:
		if res.Search == correct.Corrected {
			return header + " correct"
		}
		return header + " error"
	}
	return header
}

// ShouldEmit reports whether a failed (non-Corrected, non-Trimmed,
// non-Unchanged) search result should still be written to the single-end
// output, per the -u flag. Successful outcomes (Unchanged, Trimmed,
// Corrected) are always emitted.
func ShouldEmit(res Result, emitUncorrected bool) bool {
	if res.Outcome != Searched {
		return true
	}
	return res.Search == correct.Corrected || emitUncorrected
}
