// Package worker implements the extraction worker loop.
//
// The worker runs in its own OS process (the hidden "mnemo worker"
// subcommand) so a fault in triage or extraction can never take down the
// supervisor. It processes transcripts strictly sequentially, emits progress
// protocol events on stdout, and persists a state snapshot after every
// transcript so a crash loses at most the in-flight transcript.
package worker
