// Package filter decides whether a posting is about the target role and
// region.
package filter

import (
	"strings"
	"unicode"

	"github.com/vats98754/aus-job-fetcher/internal/models"
	"github.com/vats98754/aus-job-fetcher/internal/normalize"
)

// abbreviationLen is the longest term treated as an abbreviation in strict
// mode.
const abbreviationLen = 3

type Verdict string

const (
	Accepted       Verdict = "accepted"
	RejectedRole   Verdict = "rejected_role"
	RejectedRegion Verdict = "rejected_region"
)

// Exemption switches off checks for a pre-vetted source whose whole corpus is
// known to be in scope.
type Exemption struct {
	SkipRole   bool
	SkipRegion bool
}

type Options struct {
	// StrictAbbreviations makes short terms ("wa", "nt", "act") match only as
	// whole words instead of anywhere inside the text.
	StrictAbbreviations bool
}

type term struct {
	text    string
	bounded bool
}

// TopicFilter is stateless after construction and safe for concurrent use.
type TopicFilter struct {
	role   []term
	region []term
}

func New(vocab Vocabulary, opts Options) *TopicFilter {
	return &TopicFilter{
		role:   compile(vocab.Role, opts),
		region: compile(vocab.Region, opts),
	}
}

func compile(words []string, opts Options) []term {
	terms := make([]term, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		text := normalize.Lower(w)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		terms = append(terms, term{
			text:    text,
			bounded: opts.StrictAbbreviations && len(text) <= abbreviationLen,
		})
	}
	return terms
}

// MatchesRole reports whether the title, optionally joined with extra free
// text, contains any role keyword.
func (f *TopicFilter) MatchesRole(title string, extra ...string) bool {
	parts := append([]string{title}, extra...)
	return containsAny(normalize.Lower(strings.Join(parts, " ")), f.role)
}

// MatchesRegion reports whether location, title or URL mention the region.
func (f *TopicFilter) MatchesRegion(location, title, url string) bool {
	return containsAny(normalize.Lower(location+" "+title+" "+url), f.region)
}

// Evaluate applies both checks, honouring the source's exemption. The role
// check runs first, so a record failing both is reported as RejectedRole.
func (f *TopicFilter) Evaluate(rec models.RawRecord, ex Exemption) Verdict {
	if !ex.SkipRole && !f.MatchesRole(rec.Title) {
		return RejectedRole
	}
	if !ex.SkipRegion && !f.MatchesRegion(rec.Location, rec.Title, rec.URL) {
		return RejectedRegion
	}
	return Accepted
}

func containsAny(text string, terms []term) bool {
	if text == "" {
		return false
	}
	for _, t := range terms {
		if t.bounded {
			if containsWord(text, t.text) {
				return true
			}
			continue
		}
		if strings.Contains(text, t.text) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if isBoundary(text, start-1) && isBoundary(text, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	r := rune(text[i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
