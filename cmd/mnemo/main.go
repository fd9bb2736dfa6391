package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"mnemo/internal/watchdog"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// Interrupted; the command already reported how to resume.
		case errors.Is(err, watchdog.ErrRunActive):
			fmt.Fprintln(os.Stderr, "mnemo:", err)
			fmt.Fprintln(os.Stderr, "Run `mnemo inspect` to see the active run.")
		case errors.Is(err, watchdog.ErrNotResumable):
			fmt.Fprintln(os.Stderr, "mnemo:", err)
			fmt.Fprintln(os.Stderr, "Run `mnemo extract` to start a fresh run.")
		default:
			fmt.Fprintln(os.Stderr, "mnemo:", err)
		}
		os.Exit(1)
	}
}
