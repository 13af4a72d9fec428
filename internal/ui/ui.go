// Package ui provides terminal output helpers for the tpc CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

var writer io.Writer = os.Stderr

// SetWriter overrides the output writer (for testing).
func SetWriter(w io.Writer) {
	writer = w
}

var stdoutColor = detectColor(os.Stdout)
var stderrColor = detectColor(os.Stderr)

func detectColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetColorEnabled overrides color detection (for testing).
func SetColorEnabled(enabled bool) {
	stdoutColor = enabled
	stderrColor = enabled
}

func ansi(code, s string) string {
	if !stdoutColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func ansiStderr(code, s string) string {
	if !stderrColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Bold returns s wrapped in bold ANSI codes (stdout).
func Bold(s string) string { return ansi("1", s) }

// Dim returns s wrapped in dim ANSI codes (stdout).
func Dim(s string) string { return ansi("2", s) }

// Green returns s wrapped in green ANSI codes (stdout).
func Green(s string) string { return ansi("32", s) }

// Red returns s wrapped in red ANSI codes (stdout).
func Red(s string) string { return ansi("31", s) }

// Yellow returns s wrapped in yellow ANSI codes (stdout).
func Yellow(s string) string { return ansi("33", s) }

// OKTag returns a green "✓" for success indicators.
func OKTag() string { return Green("✓") }

// FailTag returns a red "✗" for failure indicators.
func FailTag() string { return Red("✗") }

// Warnf prints a formatted user-facing warning to stderr.
func Warnf(format string, args ...any) {
	fmt.Fprintf(writer, "%s %s\n", ansiStderr("33", "Warning:"), fmt.Sprintf(format, args...))
}

// Errorf prints a formatted user-facing error to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprintf(writer, "%s %s\n", ansiStderr("31", "Error:"), fmt.Sprintf(format, args...))
}

// Info prints a user-facing message to stderr with no prefix.
func Info(msg string) {
	fmt.Fprintf(writer, "%s\n", msg)
}
