package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"mnemo/internal/protocol"
)

// progressRenderer turns worker protocol events into terminal feedback. On a
// TTY it drives a progress bar; otherwise it writes one plain line per
// transcript so logs stay greppable.
type progressRenderer struct {
	out         *os.File
	interactive bool
	bar         *progressbar.ProgressBar
	total       int
}

func newProgressRenderer(out *os.File) *progressRenderer {
	return &progressRenderer{
		out:         out,
		interactive: isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
	}
}

func (r *progressRenderer) Event(event protocol.Event) {
	switch event.Type {
	case protocol.TypeStart:
		r.total = event.Total
		if r.interactive {
			r.bar = progressbar.NewOptions(event.Total,
				progressbar.OptionSetWriter(r.out),
				progressbar.OptionSetDescription("extracting"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		} else {
			fmt.Fprintf(r.out, "extracting %d transcript(s)\n", event.Total)
		}
	case protocol.TypeProgress:
		if r.bar != nil && event.Stage == protocol.StageTriage {
			r.bar.Describe(fmt.Sprintf("extracting %s", event.TranscriptID))
		}
	case protocol.TypeExtractionComplete:
		if r.bar != nil {
			_ = r.bar.Add(1)
		} else {
			fmt.Fprintf(r.out, "done %s (%d memories)\n", event.TranscriptID, event.Memories)
		}
	case protocol.TypeError:
		// A stage-less error is a failed transcript; it still advances the
		// bar since no extraction_complete will follow for it.
		if r.bar != nil && event.Stage == "" {
			_ = r.bar.Add(1)
		}
		if !r.interactive {
			fmt.Fprintf(r.out, "error %s: %s\n", event.TranscriptID, event.Message)
		}
	case protocol.TypeSummary:
		if r.bar != nil {
			_ = r.bar.Finish()
		}
	}
}
