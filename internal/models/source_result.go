package models

import "time"

type SourceStatus string

const (
	SourceOK      SourceStatus = "ok"
	SourceFailed  SourceStatus = "failed"
	SourceTimeout SourceStatus = "timeout"
)

// SourceResult is what one adapter contributed to a run. A failed or timed
// out source may still carry the records it produced before failing.
type SourceResult struct {
	Source   string        `json:"source"`
	Status   SourceStatus  `json:"status"`
	Records  []RawRecord   `json:"-"`
	Fetched  int           `json:"fetched"`
	Accepted int           `json:"accepted"`
	Err      error         `json:"-"`
	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (r SourceResult) Failed() bool {
	return r.Status != SourceOK
}
