package docs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// SetHash computes a deterministic hash over the whole discovered set:
// document paths and contents plus asset paths and contents. Two checkouts
// with identical documentation content produce the same hash, which lets a
// republish of an unchanged tree be detected before any rendering happens.
func (s *Set) SetHash() (string, error) {
	h := sha256.New()

	for _, doc := range s.Documents {
		contentHash := sha256.Sum256(doc.Content)
		fmt.Fprintf(h, "doc|%s|%s\n", doc.RelativePath, hex.EncodeToString(contentHash[:]))
	}
	for _, asset := range s.Assets {
		content, err := os.ReadFile(asset.Path)
		if err != nil {
			return "", fmt.Errorf("failed to hash asset %s: %w", asset.RelativePath, err)
		}
		contentHash := sha256.Sum256(content)
		fmt.Fprintf(h, "asset|%s|%s\n", asset.RelativePath, hex.EncodeToString(contentHash[:]))
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
