package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var (
	noColorFlag bool

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// InitUI initializes the UI color settings.
func InitUI(noColor bool) {
	noColorFlag = noColor

	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects UI output. Used by tests.
func SetOutput(out, errOut io.Writer) {
	stdout = out
	stderr = errOut
}
