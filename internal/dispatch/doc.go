// Package dispatch fans a stored analysis result out to the recipients
// registered at a location.
//
// Delivery semantics
//
// One Dispatch call is one batch. Recipients are isolated: a failed or
// skipped recipient never affects the others, and there is no automatic
// retry — the operator re-issues the dispatch after reading the report.
// The report is a join over every recipient's outcome; Dispatch does
// not return until all attempted sends have resolved.
//
// Language resolution
//
// Explicit request language wins, then the recipient's preference, then
// the configured default. A recipient whose effective language has no
// advice text is skipped rather than contacted in another language:
// advice in an unintended language is worse than silence.
package dispatch
