package scraper

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxSelectionAttempts bounds how often SelectCategory re-prompts.
const maxSelectionAttempts = 3

// Choice is a category offered for interactive selection.
type Choice struct {
	Label string
	Link  string
}

// SelectCategory prints choices as a 1-based list on out and reads the
// selected number from in. Invalid input is re-prompted a few times before a
// *UserInputError is returned. It never falls back to a default.
func SelectCategory(in io.Reader, out io.Writer, choices []Choice) (Choice, error) {
	if len(choices) == 0 {
		return Choice{}, &UserInputError{Msg: "no categories to choose from"}
	}

	for i, choice := range choices {
		fmt.Fprintf(out, "%d) %s\n", i+1, choice.Label)
	}

	scanner := bufio.NewScanner(in)
	var lastErr *UserInputError
	for attempt := 0; attempt < maxSelectionAttempts; attempt++ {
		fmt.Fprintf(out, "Select a category [1-%d]: ", len(choices))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return Choice{}, &UserInputError{Msg: fmt.Sprintf("read selection: %v", err)}
			}
			return Choice{}, &UserInputError{Msg: "no selection provided"}
		}

		input := strings.TrimSpace(scanner.Text())
		n, err := strconv.Atoi(input)
		switch {
		case err != nil:
			lastErr = &UserInputError{Input: input, Msg: "not a number"}
		case n < 1 || n > len(choices):
			lastErr = &UserInputError{Input: input, Msg: fmt.Sprintf("must be between 1 and %d", len(choices))}
		default:
			return choices[n-1], nil
		}
		fmt.Fprintln(out, lastErr.Error())
	}
	return Choice{}, lastErr
}
