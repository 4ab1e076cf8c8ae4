// Package pipeline runs one sync of a repository's releases and optional
// branch snapshot.
//
// Every asset of every release whose name matches the release filter becomes
// its own task. A task walks these states:
//
//	Pending -> FilteredOut | SkippedDuplicate | TestLogged
//	Pending -> Downloading -> Extracting -> Routed -> Recorded
//
// and ends in Failed if any step returns an error. Failures are isolated:
// sibling tasks keep running and the run reports every failure in its
// Summary.
//
// Downloads and extractions share a semaphore passed in through Options, so
// separate pipelines never share a limiter by accident.
package pipeline
