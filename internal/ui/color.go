package ui

import (
	"os"

	"github.com/muesli/termenv"
)

// ShouldUseColor reports whether styled output is appropriate: a color
// terminal on stdout and no NO_COLOR override.
func ShouldUseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return termenv.NewOutput(os.Stdout).Profile != termenv.Ascii
}
