package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gaurav-prasanna/bookpipe/core"
	"github.com/gaurav-prasanna/bookpipe/core/assemble"
	"github.com/gaurav-prasanna/bookpipe/core/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	// Page 2 failed, pages 4 and 5 were never processed.
	report := &pipeline.Report{
		Range:  core.PageRange{First: 1, Last: 6},
		Failed: map[int]error{2: errors.New("boom")},
		Document: assemble.Result{
			Path:     "out/Mathe.pdf",
			Included: []int{1, 3},
			Missing:  []int{2, 4, 5},
		},
	}
	var out, errOut bytes.Buffer

	printSummary(&out, &errOut, report)

	assert.Equal(t, "✓ Written: out/Mathe.pdf\n", out.String())
	assert.Equal(t, "\n3/5 pages missing: 2, 4, 5\n", errOut.String())
}

func TestPrintSummary_Complete(t *testing.T) {
	t.Parallel()

	report := &pipeline.Report{
		Range:    core.PageRange{First: 1, Last: 3},
		Document: assemble.Result{Path: "book.pdf", Included: []int{1, 2}},
	}
	var out, errOut bytes.Buffer

	printSummary(&out, &errOut, report)

	assert.Equal(t, "✓ Written: book.pdf\n", out.String())
	assert.Empty(t, errOut.String())
}
