// Package logs reads the daemon log for `leadflow daemon logs`.
//
// The daemon writes one file per run and repoints leadflowd.log at it, so a
// reader that finds its offset beyond the end of the file assumes a restart and
// starts over from the beginning of the new run.
package logs
