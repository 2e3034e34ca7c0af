package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	success = color.New(color.FgGreen, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
)

// printHeadline highlights the server's message line before the JSON body
func printHeadline(w io.Writer, out map[string]any) {
	msg, ok := out["message"].(string)
	if !ok || msg == "" {
		return
	}
	success.Fprintln(w, msg)
}

func printFailure(w io.Writer, format string, args ...any) {
	danger.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}
