// Package runstate persists the durable snapshot of an extraction run.
//
// The state file is the single source of truth for crash recovery: the
// worker updates it at stage boundaries, the supervisor finalizes it, and
// the recovery inspector classifies it. Field names are a compatibility
// surface because the inspector may be a different build than the worker.
package runstate
