package models

import "time"

// Stats describes the record set a run produced.
type Stats struct {
	Total        int `json:"total"`
	WithPostedAt int `json:"with_posted_at"`
	WithinHour   int `json:"within_hour"`
	WithinDay    int `json:"within_day"`

	Fetched  int `json:"fetched"`
	Filtered int `json:"filtered"`
	Dropped  int `json:"dropped"`
	New      int `json:"new"`
}

// RunSummary is the durable, publishable account of one run.
type RunSummary struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Incremental bool           `json:"incremental"`
	Stats       Stats          `json:"stats"`
	Sources     []SourceResult `json:"sources"`
	PersistErr  string         `json:"persist_error,omitempty"`
}

func (s RunSummary) FailedSources() []string {
	var failed []string
	for _, r := range s.Sources {
		if r.Failed() {
			failed = append(failed, r.Source)
		}
	}
	return failed
}
