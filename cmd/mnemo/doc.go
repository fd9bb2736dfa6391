// Command mnemo is the memory extraction CLI: it registers conversation
// transcripts, runs the supervised extraction pipeline over them, and
// inspects or clears the recorded run state.
package main
