package errors

// Package errors provides sentinel errors for document discovery operations.
// These enable consistent classification and improved error handling for render stage failures.

import "errors"

var (
	// ErrDocsPathNotFound indicates a configured documentation path does not exist in the checkout.
	ErrDocsPathNotFound = errors.New("documentation path not found")

	// ErrDocsDirWalkFailed indicates filesystem traversal of a docs directory failed.
	ErrDocsDirWalkFailed = errors.New("documentation directory walk failed")

	// ErrFileReadFailed indicates reading content from a discovered documentation file failed.
	ErrFileReadFailed = errors.New("documentation file read failed")

	// ErrNoDocsFound indicates no documents were discovered in any configured path.
	ErrNoDocsFound = errors.New("no documentation files found")

	// ErrInvalidRelativePath indicates calculating relative path from docs base failed.
	ErrInvalidRelativePath = errors.New("invalid relative path calculation")

	// ErrFrontmatterInvalid indicates a document carries unparseable frontmatter.
	ErrFrontmatterInvalid = errors.New("invalid frontmatter")

	// ErrSnippetInvalid indicates a document carries a malformed snippet declaration.
	ErrSnippetInvalid = errors.New("invalid snippet")

	// ErrPathCollision indicates multiple source files map to the same site path due to case normalization.
	ErrPathCollision = errors.New("path collision detected")
)
