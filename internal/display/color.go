// Package display renders prayer schedules and countdown state for a
// terminal, using raw ANSI escape codes.
//
// It respects the NO_COLOR environment variable (https://no-color.org/) and
// detects whether stdout is a terminal. Colors are disabled when output is
// piped or redirected, or when NO_COLOR is set.
package display

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI escape codes for styling.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	clear  = "\033[2K\r" // erase line, return carriage
)

// enabled reports whether color output is active.
var enabled bool

func init() {
	enabled = shouldEnable()
}

func shouldEnable() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if _, ok := os.LookupEnv("FORCE_COLOR"); ok {
		return true
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is connected to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetEnabled overrides the auto-detected color state.
func SetEnabled(b bool) {
	enabled = b
}

// Enabled reports whether color output is currently active.
func Enabled() bool {
	return enabled
}

func wrap(code, text string) string {
	if !enabled {
		return text
	}
	return code + text + reset
}

// Bold is used for headers.
func Bold(text string) string {
	return wrap(bold, text)
}

// Dim is used for separators and secondary details.
func Dim(text string) string {
	return wrap(dim, text)
}

// Warn marks stale data.
func Warn(text string) string {
	return wrap(yellow, text)
}

// Alert marks errors.
func Alert(text string) string {
	return wrap(red, text)
}

// Accent highlights the active prayer and today's row.
func Accent(text string) string {
	return wrap(bold+cyan, text)
}

// ClearLine returns the sequence that rewinds the current terminal line, or
// a newline when colors are off and output is not a terminal.
func ClearLine() string {
	if !enabled {
		return "\n"
	}
	return clear
}
