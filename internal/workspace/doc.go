// Package workspace manages per-run working directories for the publish
// pipeline.
//
// Every run gets its own directory (e.g. docpublish-run-4f9a...) holding the
// source checkout, the provisioned toolchain, the generated site tree and
// the run report. Finished workspaces are either cleaned up immediately
// (one-shot runs) or swept later by the daemon's retention job.
package workspace
