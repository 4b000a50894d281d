package sources

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/normalize"
)

const (
	hnItemURL = "https://news.ycombinator.com/item?id=%d"
	// hnItemKey carries the item id in the path, which survives URL
	// canonicalisation.
	hnItemKey = "https://news.ycombinator.com/item/%d"
)

var (
	titlePattern    = regexp.MustCompile(`(?i)\b(?:position|role|title)s?:\s*([^,|\n]+)`)
	locationPattern = regexp.MustCompile(`(?i)\blocation:\s*([^|\n]+)`)
	salaryPattern   = regexp.MustCompile(`(?:A|AU|US)?\$\d+(?:,\d{3})*(?:\.\d+)?[Kk]?\s*[-–]\s*(?:A|AU|US)?\$?\d+(?:,\d{3})*(?:\.\d+)?[Kk]?`)
	remotePattern   = regexp.MustCompile(`(?i)\b(remote|wfh|work[- ]from[- ]home)\b`)
)

// ParseHNComment reads a "Who is hiring" comment whose first line follows
// the thread convention "Company | Location | Role | ...". Labelled
// "Role:" and "Location:" lines fill in what the header omits. Comments
// without a recognisable role are dropped.
func ParseHNComment(id int, rawHTML string, postedUnix int64, removed bool) (models.RawRecord, bool) {
	if removed || strings.TrimSpace(rawHTML) == "" {
		return models.RawRecord{}, false
	}

	text, link := commentText(rawHTML)
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return models.RawRecord{}, false
	}

	parts := strings.Split(lines[0], "|")
	for i := range parts {
		parts[i] = normalize.Text(parts[i])
	}

	var company, location, title string
	company = parts[0]
	if len(parts) > 1 {
		location = parts[1]
	}
	if len(parts) > 2 {
		title = parts[2]
	}

	if title == "" {
		if m := titlePattern.FindStringSubmatch(text); m != nil {
			title = normalize.Text(m[1])
		}
	}
	if location == "" {
		if m := locationPattern.FindStringSubmatch(text); m != nil {
			location = normalize.Text(m[1])
		} else if remotePattern.MatchString(lines[0]) {
			location = "Remote"
		}
	}
	if title == "" {
		return models.RawRecord{}, false
	}

	rec := models.RawRecord{
		Title:    title,
		Company:  company,
		Location: location,
		URL:      link,
		Source:   HackerNewsName,
	}
	if link == "" {
		rec.URL = fmt.Sprintf(hnItemURL, id)
		rec.IdentityURL = fmt.Sprintf(hnItemKey, id)
	}
	if m := salaryPattern.FindString(text); m != "" {
		rec.Salary = normalize.Text(m)
	}
	if postedUnix > 0 {
		rec.PostedText = time.Unix(postedUnix, 0).UTC().Format(time.RFC3339)
	}
	return rec, true
}

// commentText renders comment HTML to plain text, one paragraph per line,
// and returns the first absolute link it contains.
func commentText(rawHTML string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(rawHTML, "<p>", "\n<p>")))
	if err != nil {
		return rawHTML, ""
	}

	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
			link = href
			return false
		}
		return true
	})
	return doc.Text(), link
}

func nonEmptyLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if l := normalize.Text(line); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
