package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(200*time.Millisecond))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "3m 5s", FormatDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "1h 0m 1s", FormatDuration(time.Hour+time.Second))
}

func TestFormatPages(t *testing.T) {
	assert.Equal(t, "-", FormatPages(nil))
	assert.Equal(t, "2, 5, 9", FormatPages([]int{2, 5, 9}))
}

func TestTable(t *testing.T) {
	var out bytes.Buffer
	SetOutput(&out, &out)
	InitUI(true)

	Table([]string{"Metric", "Value"}, [][]string{{"Pages", "3"}, {"Failed", "1"}})

	assert.Equal(t, "Metric  Value\n------  -----\nPages   3\nFailed  1\n", out.String())
}

func TestMessages(t *testing.T) {
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	InitUI(true)

	Success("wrote %s", "a.md")
	Error("page %d failed", 4)

	assert.Equal(t, "✓ wrote a.md\n", out.String())
	assert.Equal(t, "✗ page 4 failed\n", errOut.String())
}

func TestUnderline(t *testing.T) {
	assert.Equal(t, "=====", underline("Pages"))
	assert.Equal(t, "====", underline("试卷"))
}

func TestSpinnerUpdateMessage(t *testing.T) {
	SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	InitUI(true)

	s := NewSpinner("[1/3] a.md")
	assert.Equal(t, " [1/3] a.md", s.spinner.Suffix)

	s.UpdateMessage("[2/3] b.md")
	assert.Equal(t, " [2/3] b.md", s.spinner.Suffix)
}
