package sources

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/normalize"
)

var markdownLink = regexp.MustCompile(`^\s*\[([^\]]+)\]\(([^)\s]+)\)`)

// Curated reads the community-maintained markdown table of Australian tech
// internships. Rows look like | [Role](URL) | Company | Location | Notes | Date |.
type Curated struct {
	fetcher *Fetcher
	url     string
	logger  *zap.Logger
}

func NewCurated(fetcher *Fetcher, url string, logger *zap.Logger) *Curated {
	return &Curated{
		fetcher: fetcher,
		url:     url,
		logger:  logger.Named("curated"),
	}
}

func (c *Curated) Name() string {
	return CuratedName
}

func (c *Curated) Fetch(ctx context.Context) ([]models.RawRecord, error) {
	ctx, span := tracer.Start(ctx, "Curated.Fetch")
	defer span.End()

	body, err := c.fetcher.Get(ctx, c.url)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	records := ParseCuratedTable(string(body))
	span.SetAttributes(telemetry.Int("records.count", len(records)))
	c.logger.Info("parsed curated list", zap.Int("count", len(records)))
	return records, nil
}

// ParseCuratedTable extracts one record per table row whose first cell is a
// markdown link to an http(s) URL. Header rows are skipped.
func ParseCuratedTable(content string) []models.RawRecord {
	var records []models.RawRecord
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}

		cells := strings.Split(strings.Trim(line, "|"), "|")
		if len(cells) < 3 {
			continue
		}

		m := markdownLink.FindStringSubmatch(cells[0])
		if m == nil {
			continue
		}
		title := normalize.Text(m[1])
		link := strings.TrimSpace(m[2])
		lower := strings.ToLower(title)
		if title == "" || lower == "role" || lower == "company" || !strings.HasPrefix(link, "http") {
			continue
		}

		location := normalize.Text(cells[2])
		if location == "" {
			location = "Australia"
		}

		rec := models.RawRecord{
			Title:    title,
			Company:  normalize.Text(stripLink(cells[1])),
			Location: location,
			URL:      link,
			Source:   CuratedName,
		}
		if len(cells) >= 5 {
			rec.PostedText = normalize.Text(cells[len(cells)-1])
		}
		records = append(records, rec)
	}
	return records
}

// stripLink reduces "[Name](url)" to "Name" and leaves other text alone.
func stripLink(cell string) string {
	if m := markdownLink.FindStringSubmatch(cell); m != nil {
		return m[1]
	}
	return cell
}
