// Package llm wraps the OpenRouter-style chat completion API used as the
// summarization engine. The worker is the only component that talks to it.
package llm
