// Package registry tracks known transcripts and their processed flags.
//
// The registry is a versioned JSON file shared between the supervisor and
// the worker process. Every read goes back to disk so both processes observe
// each other's writes, and every write uses the atomic temp-then-rename
// discipline from fileutil.
package registry
