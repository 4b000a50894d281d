// Package identity derives the primary key used to deduplicate postings.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/vats98754/aus-job-fetcher/internal/normalize"
)

const (
	// Length is the number of hex characters kept from the digest.
	Length = 16

	delimiter = "\x1f"
)

// Fingerprint returns the id of a posting. Query string and fragment are
// ignored so tracking parameters never mint a new id, and title, company
// and URL authority+path are case-folded.
func Fingerprint(title, company, rawURL string) string {
	key := strings.Join([]string{
		urlKey(rawURL),
		normalize.Lower(title),
		normalize.Lower(company),
	}, delimiter)

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:Length]
}

// urlKey falls back to the raw string for anything that does not parse into
// an authority, so malformed links still hash deterministically.
func urlKey(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	return strings.ToLower(u.Host + u.EscapedPath())
}
