package output

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// PrintLeft rewrites the current line, padding to the terminal width so
// stale characters from a longer previous status do not linger.
func PrintLeft(text string) {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		width = 80
	}

	padding := width - len(text)
	if padding < 0 {
		padding = 0
	}

	fmt.Printf("\r%s%s", text, strings.Repeat(" ", padding))
}

func ProgressBar(percent int, width int) string {
	if percent > 100 {
		percent = 100
	}
	filled := (percent * width) / 100
	return fmt.Sprintf("%s%s",
		strings.Repeat("█", filled),
		strings.Repeat(" ", width-filled),
	)
}
