package models

import (
	"encoding/json"
	"time"
)

// RawRecord is whatever a source adapter extracted for one posting. Nothing
// about it is trusted: any field may be empty, padded or malformed.
type RawRecord struct {
	Title      string `json:"title"`
	Company    string `json:"company"`
	Location   string `json:"location"`
	URL        string `json:"url"`
	Salary     string `json:"salary"`
	Source     string `json:"source"`
	PostedText string `json:"posted_text"`

	// IdentityURL replaces URL as the fingerprint input when the visible
	// link keeps its only distinguishing part in the query string.
	IdentityURL string `json:"-"`
}

// CanonicalRecord is the normalized, filtered, fingerprinted form of a
// posting and the unit the store is keyed on.
type CanonicalRecord struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Company          string     `json:"company"`
	Location         string     `json:"location"`
	Salary           string     `json:"salary"`
	URL              string     `json:"url"`
	Source           string     `json:"source"`
	PostedAt         *time.Time `json:"posted_at"`
	FetchedAt        time.Time  `json:"fetched_at"`
	HoursSincePosted *float64   `json:"hours_since_posted"`
}

func (r CanonicalRecord) MarshalBinary() ([]byte, error) {
	return json.Marshal(r)
}

func (r *CanonicalRecord) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, r)
}
