package main

import (
	"fmt"
	"strings"
	"time"

	"ganesha/pkg/minime"
)

const (
	ansiBold  = "\033[1m"
	ansiGreen = "\033[32m"
	ansiRed   = "\033[31m"
	ansiReset = "\033[0m"
)

// formatResult renders a result for the terminal. Color is used only when
// pretty is set.
func formatResult(r minime.Result, pretty bool) string {
	var b strings.Builder

	status := "✅ " + r.Outcome.String()
	color := ansiGreen
	if !r.Success {
		status = "❌ " + r.Outcome.String()
		color = ansiRed
	}
	if pretty {
		status = ansiBold + color + status + ansiReset
	}

	fallback := ""
	if r.FellBack {
		fallback = " (fallback)"
	}
	fmt.Fprintf(&b, "%s  task %s\n", status, r.TaskID)
	fmt.Fprintf(&b, "Provider: %s%s  Model: %s  Turns: %d  Tokens: %d  Cost: $%.4f  Duration: %s\n",
		r.Provider, fallback, r.ModelUsed, r.Turns, r.TokensUsed, r.Cost, r.Duration.Round(time.Millisecond))

	if len(r.FilesModified) > 0 {
		fmt.Fprintf(&b, "Files modified: %s\n", strings.Join(r.FilesModified, ", "))
	}
	if len(r.Errors) > 0 {
		b.WriteString("Errors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	b.WriteString("\nSummary:\n")
	b.WriteString(r.Summary)
	b.WriteString("\n")
	return b.String()
}
