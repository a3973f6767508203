package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Logo is printed by the crawl command before a run starts
const Logo = `
    ┌───────────────────────────────────────────────┐
    │  eoscraper :: economic operator harvester     │
    └───────────────────────────────────────────────┘
`

var (
	out          io.Writer = os.Stdout
	colorEnabled           = term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	quiet        bool
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if !colorEnabled {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// SetOutput redirects everything the package prints
func SetOutput(w io.Writer) { out = w }

// SetColor forces ANSI colors on or off
func SetColor(enabled bool) { colorEnabled = enabled }

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) { quiet = q }

// PrintLogo prints the banner
func PrintLogo() {
	if quiet {
		return
	}
	fmt.Fprint(out, Cyan(Logo))
}

// PrintError prints an error message in red. Errors are printed in quiet
// mode too.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	fmt.Fprintln(out, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	if quiet {
		return
	}
	fmt.Fprintf(out, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quiet {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	fmt.Fprintln(out, Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if quiet {
		return
	}
	fmt.Fprintln(out, Magenta(msg))
}
