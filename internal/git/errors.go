package git

import (
	"fmt"
	"strings"
)

// Typed git errors enabling structured classification without string parsing upstream.

type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// BranchMissingError indicates the requested branch does not exist on the remote.
type BranchMissingError struct {
	Op, URL, Branch string
	Err             error
}

func (e *BranchMissingError) Error() string {
	return fmt.Sprintf("%s branch %s missing on %s: %v", e.Op, e.Branch, e.URL, e.Err)
}
func (e *BranchMissingError) Unwrap() error { return e.Err }

// NonFastForwardError indicates the hosting branch advanced while this run
// was rendering. Another publisher won the race; the push is rejected.
type NonFastForwardError struct {
	Op, URL, Branch string
	Err             error
}

func (e *NonFastForwardError) Error() string {
	return fmt.Sprintf("%s rejected for %s@%s (remote advanced): %v", e.Op, e.URL, e.Branch, e.Err)
}
func (e *NonFastForwardError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, URL string
	Err     error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out for %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// classifyRemoteError wraps go-git remote operation failures into typed variants.
func classifyRemoteError(op, url, branch string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "authorization") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "couldn't find remote ref") || strings.Contains(l, "reference not found"):
		return &BranchMissingError{Op: op, URL: url, Branch: branch, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "non-fast-forward"):
		return &NonFastForwardError{Op: op, URL: url, Branch: branch, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{Op: op, URL: url, Err: err}
	case strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout"):
		return &NetworkTimeoutError{Op: op, URL: url, Err: err}
	default:
		return fmt.Errorf("%s failed for %s: %w", op, url, err)
	}
}
