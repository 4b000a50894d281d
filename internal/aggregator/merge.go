package aggregator

import (
	"sort"

	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/recency"
)

type MergePolicy string

const (
	// MergeRefresh replaces a stored record with the new observation.
	MergeRefresh MergePolicy = "refresh"
	// MergeKeepPostedAt takes the new observation but keeps the earliest
	// known posting time.
	MergeKeepPostedAt MergePolicy = "keep_posted_at"
)

// DedupFirstSeen keeps the first record for each id, preserving order.
func DedupFirstSeen(records []models.CanonicalRecord) []models.CanonicalRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.CanonicalRecord, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Merge combines a deduplicated batch with the stored set. The batch comes
// first so its observations win; ids only present in the store are kept
// unchanged.
func Merge(batch, existing []models.CanonicalRecord, policy MergePolicy) []models.CanonicalRecord {
	combined := make([]models.CanonicalRecord, 0, len(batch)+len(existing))
	combined = append(combined, batch...)
	combined = append(combined, existing...)
	merged := DedupFirstSeen(combined)

	if policy != MergeKeepPostedAt || len(existing) == 0 {
		return merged
	}

	inBatch := make(map[string]struct{}, len(batch))
	for _, r := range batch {
		inBatch[r.ID] = struct{}{}
	}
	stored := make(map[string]models.CanonicalRecord, len(existing))
	for _, r := range existing {
		if _, ok := stored[r.ID]; !ok {
			stored[r.ID] = r
		}
	}
	for i := range merged {
		if _, ok := inBatch[merged[i].ID]; !ok {
			continue
		}
		prev, ok := stored[merged[i].ID]
		if !ok || prev.PostedAt == nil {
			continue
		}
		if merged[i].PostedAt == nil || prev.PostedAt.Before(*merged[i].PostedAt) {
			posted := prev.PostedAt.UTC()
			merged[i].PostedAt = &posted
			merged[i].HoursSincePosted = recency.HoursSince(merged[i].FetchedAt, merged[i].PostedAt)
		}
	}
	return merged
}

// SortByFetchedAt orders records newest fetch first. Records fetched at the
// same instant keep their relative order.
func SortByFetchedAt(records []models.CanonicalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FetchedAt.After(records[j].FetchedAt)
	})
}

// NewIDs lists ids of batch records absent from existing, in batch order.
func NewIDs(batch, existing []models.CanonicalRecord) []string {
	known := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		known[r.ID] = struct{}{}
	}
	var ids []string
	for _, r := range batch {
		if _, ok := known[r.ID]; !ok {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
