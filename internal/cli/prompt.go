package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
)

// PromptForImagePath asks for an image path on out and reads one line from
// in. Returns "" if the user enters nothing or input is closed.
func PromptForImagePath(in *bufio.Reader, out io.Writer) string {
	fmt.Fprint(out, "Image file: ")

	input, err := in.ReadString('\n')
	if err != nil && input == "" {
		if err != io.EOF {
			log.Warn().Err(err).Msg("Failed to read input")
		}
		return ""
	}

	return strings.Trim(strings.TrimSpace(input), `"'`)
}

// PromptYesNo asks question and reports whether the answer starts with y.
// Anything else, including EOF, is a no.
func PromptYesNo(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s (y/N): ", question)

	input, err := in.ReadString('\n')
	if err != nil && input == "" {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(input))
	return answer == "y" || answer == "yes"
}

// IsInteractive reports whether f is attached to a terminal. Prompts are only
// offered when stdin is interactive.
func IsInteractive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
