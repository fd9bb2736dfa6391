// Package summarize implements the two-pass memory extraction pipeline.
//
// The triage pass scans an entire transcript and selects the message ranges
// worth deep processing, avoiding the recency bias of suffix-only windows.
// The extraction pass then mines only those ranges for structured memory
// records. Both passes go through the summarization engine as JSON-only
// completions.
package summarize
