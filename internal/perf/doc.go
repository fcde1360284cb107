// Package perf holds benchmarks for the hot paths of list rendering and
// spreadsheet import.
package perf
