package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/normalize"
)

var salaryPrinter = message.NewPrinter(language.English)

type AdzunaOptions struct {
	BaseURL        string
	AppID          string
	AppKey         string
	Country        string
	Searches       []string
	ResultsPerPage int
	MaxDaysOld     int
}

type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
}

type adzunaResult struct {
	Title   string `json:"title"`
	Company struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	RedirectURL string  `json:"redirect_url"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	Created     string  `json:"created"`
}

// Adzuna queries the Adzuna search API once per configured phrase.
type Adzuna struct {
	fetcher *Fetcher
	opts    AdzunaOptions
	logger  *zap.Logger
}

func NewAdzuna(fetcher *Fetcher, opts AdzunaOptions, logger *zap.Logger) *Adzuna {
	if opts.ResultsPerPage <= 0 {
		opts.ResultsPerPage = 20
	}
	if opts.MaxDaysOld <= 0 {
		opts.MaxDaysOld = 30
	}
	if opts.Country == "" {
		opts.Country = "au"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Adzuna{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger.Named("adzuna"),
	}
}

func (a *Adzuna) Name() string {
	return AdzunaName
}

func (a *Adzuna) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	ctx, span := tracer.Start(ctx, "Adzuna.Fetch")
	defer span.End()

	var (
		records  []models.RawRecord
		firstErr error
		failures int
	)
	for _, phrase := range a.opts.Searches {
		if err := ctx.Err(); err != nil {
			return records, errors.Timeout("adzuna searches interrupted", err)
		}

		var resp adzunaResponse
		if err := a.fetcher.GetJSON(ctx, a.searchURL(phrase), &resp); err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
			a.logger.Warn("search failed", zap.String("search", phrase), zap.Error(err))
			continue
		}

		for _, result := range resp.Results {
			if rec, ok := adzunaRecord(result); ok {
				records = append(records, rec)
			}
		}
	}

	span.SetAttributes(telemetry.Int("records.count", len(records)))
	if len(a.opts.Searches) > 0 && failures == len(a.opts.Searches) {
		span.RecordError(firstErr)
		return records, errors.Unavailable("all adzuna searches failed", firstErr)
	}
	return records, nil
}

func (a *Adzuna) searchURL(phrase string) string {
	params := url.Values{}
	params.Set("app_id", a.opts.AppID)
	params.Set("app_key", a.opts.AppKey)
	params.Set("results_per_page", strconv.Itoa(a.opts.ResultsPerPage))
	params.Set("what", phrase)
	params.Set("sort_by", "date")
	params.Set("max_days_old", strconv.Itoa(a.opts.MaxDaysOld))
	return fmt.Sprintf("%s/%s/search/1?%s", a.opts.BaseURL, url.PathEscape(a.opts.Country), params.Encode())
}

func adzunaRecord(r adzunaResult) (models.RawRecord, bool) {
	title := normalize.Text(r.Title)
	link := strings.TrimSpace(r.RedirectURL)
	if title == "" || link == "" {
		return models.RawRecord{}, false
	}

	company := normalize.Text(r.Company.DisplayName)
	if company == "" {
		company = "Unknown"
	}
	location := normalize.Text(r.Location.DisplayName)
	if location == "" {
		location = "Australia"
	}

	var salary string
	if r.SalaryMin > 0 && r.SalaryMax > 0 {
		salary = "$" + groupThousands(int64(r.SalaryMin)) + " - $" + groupThousands(int64(r.SalaryMax))
	}

	return models.RawRecord{
		Title:      title,
		Company:    company,
		Location:   location,
		URL:        link,
		Salary:     salary,
		Source:     AdzunaName,
		PostedText: strings.TrimSpace(r.Created),
	}, true
}

// groupThousands formats n with comma separators, e.g. 65000 -> "65,000".
func groupThousands(n int64) string {
	return salaryPrinter.Sprintf("%d", n)
}
