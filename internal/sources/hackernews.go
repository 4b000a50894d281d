package sources

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/models"
)

const hiringAuthor = "whoishiring"

type HackerNewsOptions struct {
	APIBaseURL       string
	SearchAPIBaseURL string
	MaxComments      int
	Workers          int
}

type hnItem struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Time    int64  `json:"time"`
	Parent  int    `json:"parent"`
	Kids    []int  `json:"kids"`
	By      string `json:"by"`
	Deleted bool   `json:"deleted"`
	Dead    bool   `json:"dead"`
}

type hnSearchResult struct {
	Hits []struct {
		ObjectID string `json:"objectID"`
		Title    string `json:"title"`
		Author   string `json:"author"`
	} `json:"hits"`
	NbHits int `json:"nbHits"`
}

// HackerNews reads the top-level comments of the latest "Ask HN: Who is
// hiring?" thread. Each comment is one posting.
type HackerNews struct {
	fetcher *Fetcher
	opts    HackerNewsOptions
	logger  *zap.Logger
	now     func() time.Time
}

func NewHackerNews(fetcher *Fetcher, opts HackerNewsOptions, logger *zap.Logger) *HackerNews {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	opts.APIBaseURL = strings.TrimRight(opts.APIBaseURL, "/")
	opts.SearchAPIBaseURL = strings.TrimRight(opts.SearchAPIBaseURL, "/")
	return &HackerNews{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.Named("hackernews"),
		now:     time.Now,
	}
}

func (h *HackerNews) Name() string {
	return HackerNewsName
}

func (h *HackerNews) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	ctx, span := tracer.Start(ctx, "HackerNews.Fetch")
	defer span.End()

	thread, err := h.latestHiringThread(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if thread == nil {
		h.logger.Info("no hiring thread found")
		return nil, nil
	}

	kids := thread.Kids
	if h.opts.MaxComments > 0 && len(kids) > h.opts.MaxComments {
		kids = kids[:h.opts.MaxComments]
	}
	span.SetAttributes(
		telemetry.Int("hn.thread.id", thread.ID),
		telemetry.Int("hn.comments.count", len(kids)),
	)
	h.logger.Info("found hiring thread",
		zap.Int("id", thread.ID),
		zap.String("title", thread.Title),
		zap.Int("comments_count", len(kids)))

	records, failed := h.processComments(ctx, kids)
	if err := ctx.Err(); err != nil {
		return records, errors.Timeout("hacker news comments interrupted", err)
	}
	if len(kids) > 0 && failed == len(kids) {
		return nil, errors.Unavailable("every hacker news comment fetch failed", nil)
	}
	span.SetAttributes(telemetry.Int("records.count", len(records)))
	return records, nil
}

// latestHiringThread searches recent whoishiring stories and returns the
// newest one that is a hiring thread, or nil when none is found.
func (h *HackerNews) latestHiringThread(ctx context.Context) (*hnItem, error) {
	ids, err := h.searchHiringThreads(ctx)
	if err != nil {
		return nil, err
	}

	var threads []*hnItem
	for _, id := range ids {
		item, err := h.getItem(ctx, id)
		if err != nil {
			h.logger.Warn("failed to fetch story", zap.Int("id", id), zap.Error(err))
			continue
		}
		if isHiringThread(item) {
			threads = append(threads, item)
		}
	}
	if len(threads) == 0 {
		return nil, nil
	}
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].Time > threads[j].Time
	})
	return threads[0], nil
}

func (h *HackerNews) searchHiringThreads(ctx context.Context) ([]int, error) {
	// Truncated to the day so repeated runs share a cache entry.
	threshold := h.now().AddDate(0, -2, 0).Truncate(24 * time.Hour).Unix()
	searchURL := fmt.Sprintf("%s/search?tags=story,author_%s&query=Ask+HN:+Who+is+hiring?&numericFilters=created_at_i>%d",
		h.opts.SearchAPIBaseURL, hiringAuthor, threshold)

	var result hnSearchResult
	if err := h.fetcher.GetJSON(ctx, searchURL, &result); err != nil {
		return nil, err
	}
	h.logger.Debug("search response stats", zap.Int("total_hits", result.NbHits))

	ids := make([]int, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.Atoi(hit.ObjectID)
		if err != nil {
			h.logger.Warn("invalid story ID",
				zap.String("id", hit.ObjectID),
				zap.String("title", hit.Title))
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *HackerNews) getItem(ctx context.Context, id int) (*hnItem, error) {
	var item hnItem
	if err := h.fetcher.GetJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.opts.APIBaseURL, id), &item); err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, errors.NotFound(fmt.Sprintf("item %d not found", id), nil)
	}
	return &item, nil
}

// processComments fetches comments on a bounded pool. Records keep the
// thread's comment order regardless of which worker finishes first.
func (h *HackerNews) processComments(ctx context.Context, ids []int) ([]models.RawRecord, int) {
	slots := make([]*models.RawRecord, len(ids))
	var failed int32

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < h.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				item, err := h.getItem(ctx, ids[idx])
				if err != nil {
					atomic.AddInt32(&failed, 1)
					h.logger.Debug("failed to process comment",
						zap.Int("comment_id", ids[idx]),
						zap.Error(err))
					continue
				}
				if rec, ok := ParseHNComment(item.ID, item.Text, item.Time, item.Deleted || item.Dead); ok {
					slots[idx] = &rec
				}
			}
		}()
	}

feed:
	for idx := range ids {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	records := make([]models.RawRecord, 0, len(ids))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, int(failed)
}

func isHiringThread(item *hnItem) bool {
	title := strings.ToLower(item.Title)
	return strings.Contains(title, "who is hiring?") && item.By == hiringAuthor
}
