// Package git wraps go-git for the two repository operations the pipeline
// performs: checking out the source branch that triggered a run and pushing
// the rendered site onto the hosting branch.
//
// Authentication covers token and basic credentials supplied through the
// environment-expanded configuration. Errors are classified into typed
// variants so callers can map them to exit codes and run outcomes without
// string parsing.
package git
