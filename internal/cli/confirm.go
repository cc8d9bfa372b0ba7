package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/guiyumin/textube/internal/core/ai/transcriber"
)

// confirmSelector prints the tier advisory and, for tiers that need
// consent, asks the user before a job starts. Only an explicit yes
// continues.
func confirmSelector(in io.Reader, out io.Writer, sel transcriber.Selector, assumeYes bool) bool {
	advisory := sel.Advisory()
	if advisory != "" {
		fmt.Fprintf(out, "  %s %s\n", color.YellowString("Note:"), advisory)
	}
	if !sel.RequiresConfirmation() || assumeYes {
		return true
	}

	fmt.Fprint(out, "  Continue with the "+string(sel.Tier)+" model? [y/N]: ")
	line, _ := bufio.NewReader(in).ReadString('\n')
	response := strings.TrimSpace(strings.ToLower(line))
	return response == "y" || response == "yes"
}

func printError(w io.Writer, msg string) {
	fmt.Fprintln(w, color.RedString("Error: %s", msg))
}
