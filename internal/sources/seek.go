package sources

import (
	"context"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/normalize"
)

const (
	seekCardSelector     = `article[data-card-type="JobCard"]`
	seekTitleSelector    = `a[data-automation="jobTitle"]`
	seekCompanySelector  = `[data-automation="jobCompany"]`
	seekLocationSelector = `[data-automation="jobLocation"]`
	seekSalarySelector   = `[data-automation="jobSalary"]`
	seekDateSelector     = `[data-automation="jobListingDate"]`
)

// Seek scrapes SEEK search result pages, one page per configured search slug.
type Seek struct {
	baseURL        string
	searches       []string
	maxPerSearch   int
	userAgent      string
	requestTimeout time.Duration
	logger         *zap.Logger
}

func NewSeek(baseURL string, searches []string, maxPerSearch int, userAgent string, requestTimeout time.Duration, logger *zap.Logger) *Seek {
	return &Seek{
		baseURL:        strings.TrimRight(baseURL, "/"),
		searches:       searches,
		maxPerSearch:   maxPerSearch,
		userAgent:      userAgent,
		requestTimeout: requestTimeout,
		logger:         logger.Named("seek"),
	}
}

func (s *Seek) Name() string {
	return SeekName
}

// Fetch visits every search page. A failing search is logged and skipped;
// only when all of them fail does Fetch report an error.
func (s *Seek) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	ctx, span := tracer.Start(ctx, "Seek.Fetch")
	defer span.End()

	var (
		records  []models.RawRecord
		firstErr error
		failures int
	)
	for _, search := range s.searches {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return records, errors.Timeout("seek searches interrupted", err)
		}

		found, err := s.fetchSearch(ctx, search)
		records = append(records, found...)
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("search failed", zap.String("search", search), zap.Error(err))
			continue
		}
		s.logger.Debug("search parsed", zap.String("search", search), zap.Int("count", len(found)))
	}

	span.SetAttributes(telemetry.Int("records.count", len(records)))
	if len(s.searches) > 0 && failures == len(s.searches) {
		span.RecordError(firstErr)
		return records, errors.Unavailable("all seek searches failed", firstErr)
	}
	return records, nil
}

func (s *Seek) fetchSearch(ctx context.Context, search string) ([]models.RawRecord, error) {
	pageURL := s.baseURL + "/" + strings.TrimLeft(search, "/")

	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
	)
	if s.requestTimeout > 0 {
		c.SetRequestTimeout(s.requestTimeout)
	}

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	})

	var records []models.RawRecord
	c.OnHTML(seekCardSelector, func(e *colly.HTMLElement) {
		if len(records) >= s.maxPerSearch {
			return
		}
		rec, ok := parseSeekCard(e)
		if !ok {
			return
		}
		records = append(records, rec)
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = err
		s.logger.Warn("seek request failed",
			zap.String("url", r.Request.URL.String()),
			zap.Int("status_code", r.StatusCode),
			zap.Error(err))
	})

	if err := c.Visit(pageURL); err != nil && visitErr == nil {
		visitErr = err
	}
	if err := ctx.Err(); err != nil {
		return records, errors.Timeout("seek search interrupted", err)
	}
	if visitErr != nil {
		return records, errors.Unavailable("fetching "+pageURL, visitErr)
	}
	return records, nil
}

func parseSeekCard(e *colly.HTMLElement) (models.RawRecord, bool) {
	title := normalize.Text(e.ChildText(seekTitleSelector))
	href := strings.TrimSpace(e.ChildAttr(seekTitleSelector, "href"))
	if title == "" || href == "" {
		return models.RawRecord{}, false
	}

	company := normalize.Text(e.ChildText(seekCompanySelector))
	if company == "" {
		company = "Unknown"
	}
	location := normalize.Text(e.ChildText(seekLocationSelector))
	if location == "" {
		location = "Australia"
	}

	return models.RawRecord{
		Title:      title,
		Company:    company,
		Location:   location,
		URL:        e.Request.AbsoluteURL(href),
		Salary:     normalize.Text(e.ChildText(seekSalarySelector)),
		Source:     SeekName,
		PostedText: normalize.Text(e.ChildText(seekDateSelector)),
	}, true
}
