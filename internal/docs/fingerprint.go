package docs

import (
	"errors"
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/frontmatter"
	"github.com/inful/mdfp"
)

const (
	fingerprintHashKeyAliases = "aliases"
	fingerprintHashKeyLastmod = "lastmod"
	fingerprintHashKeyUID     = "uid"
)

// Fingerprint computes the canonical content fingerprint for a document.
//
// Canonicalization rules:
//   - excludes: fingerprint, lastmod, uid, aliases
//   - serializes YAML with LF newlines
//   - trims a single trailing newline from the serialized YAML before hashing
//
// The fingerprint only changes when the meaningful content of a document
// changes, so a republish of an unchanged source tree produces an identical
// site manifest.
func (d *Document) Fingerprint() (string, error) {
	if d.Meta == nil {
		return "", errors.New("document not parsed")
	}

	fieldsForHash := make(map[string]any, len(d.Meta))
	for k, v := range d.Meta {
		switch k {
		case mdfp.FingerprintField, fingerprintHashKeyLastmod, fingerprintHashKeyUID, fingerprintHashKeyAliases:
			continue
		}
		fieldsForHash[k] = v
	}

	frontmatterForHash := ""
	if len(fieldsForHash) > 0 {
		serialized, err := frontmatter.SerializeYAML(fieldsForHash, frontmatter.Style{Newline: "\n"})
		if err != nil {
			return "", err
		}
		frontmatterForHash = trimSingleTrailingNewline(string(serialized))
	}

	return mdfp.CalculateFingerprintFromParts(frontmatterForHash, string(d.Body)), nil
}

func trimSingleTrailingNewline(s string) string {
	if before, ok := strings.CutSuffix(s, "\r\n"); ok {
		return before
	}
	if before, ok := strings.CutSuffix(s, "\n"); ok {
		return before
	}
	return s
}
