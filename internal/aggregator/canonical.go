package aggregator

import (
	"net/url"
	"strings"
	"time"

	"github.com/vats98754/aus-job-fetcher/internal/identity"
	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/normalize"
	"github.com/vats98754/aus-job-fetcher/internal/recency"
)

// Canonicalize builds the canonical form of raw as observed at fetchedAt.
// Records without a title or an absolute http(s) URL are rejected.
func Canonicalize(raw models.RawRecord, fetchedAt time.Time) (models.CanonicalRecord, bool) {
	title := normalize.Text(raw.Title)
	if title == "" {
		return models.CanonicalRecord{}, false
	}
	link, ok := absoluteURL(raw.URL)
	if !ok {
		return models.CanonicalRecord{}, false
	}

	key := link
	if k, ok := absoluteURL(raw.IdentityURL); ok {
		key = k
	}

	fetchedAt = fetchedAt.UTC()
	company := normalize.Text(raw.Company)

	rec := models.CanonicalRecord{
		ID:        identity.Fingerprint(title, company, key),
		Title:     title,
		Company:   company,
		Location:  normalize.Text(raw.Location),
		Salary:    normalize.Text(raw.Salary),
		URL:       link,
		Source:    normalize.Text(raw.Source),
		FetchedAt: fetchedAt,
	}

	if posted, ok := recency.ResolveAt(raw.PostedText, fetchedAt); ok {
		// Dates ahead of the fetch are clock skew or day-only dates in a
		// zone east of UTC.
		if posted.After(fetchedAt) {
			posted = fetchedAt
		}
		rec.PostedAt = &posted
	}
	rec.HoursSincePosted = recency.HoursSince(fetchedAt, rec.PostedAt)
	return rec, true
}

func absoluteURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return s, true
	}
	return "", false
}
