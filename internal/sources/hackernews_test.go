package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func hnServer(t *testing.T, items map[int]hnItem) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search":
			if !strings.Contains(r.URL.Query().Get("tags"), "author_whoishiring") {
				t.Errorf("unexpected tags: %q", r.URL.Query().Get("tags"))
			}
			_, _ = w.Write([]byte(`{"hits":[{"objectID":"100"},{"objectID":"200"},{"objectID":"bogus"},{"objectID":"300"}],"nbHits":4}`))
		case strings.HasPrefix(r.URL.Path, "/item/"):
			var id int
			if _, err := fmt.Sscanf(r.URL.Path, "/item/%d.json", &id); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			item, ok := items[id]
			if !ok {
				_, _ = w.Write([]byte("null"))
				return
			}
			_ = json.NewEncoder(w).Encode(item)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestHackerNewsFetch(t *testing.T) {
	t.Parallel()

	// 14 is missing upstream and decodes to an empty item.
	items := map[int]hnItem{
		100: {ID: 100, Title: "Ask HN: Who is hiring? (December 2023)", By: "whoishiring", Time: 1701450000, Kids: []int{1}},
		200: {ID: 200, Title: "Ask HN: Who is hiring? (January 2024)", By: "whoishiring", Time: 1704128400, Kids: []int{11, 12, 13, 14, 15}},
		300: {ID: 300, Title: "Ask HN: Who wants to be hired? (January 2024)", By: "whoishiring", Time: 1704128401, Kids: []int{99}},
		11:  {ID: 11, Time: 1704132000, Text: `Canva | Sydney, Australia | Graduate Software Engineer | Full-time<p>Apply at <a href="https:&#x2F;&#x2F;canva.com&#x2F;careers&#x2F;1" rel="nofollow">https://canva.com/careers/1</a>`},
		12:  {ID: 12, Time: 1704132000, Text: `Acme Corp<p>Role: Junior Developer<p>Location: Melbourne<p>Salary $80k - $100k`},
		13:  {ID: 13, Deleted: true},
		15:  {ID: 15, Time: 1704132000, Text: `Just a company name with no role`},
	}
	srv := hnServer(t, items)
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	h := NewHackerNews(NewFetcher(srv.Client(), nil, 0, "ua", logger), HackerNewsOptions{
		APIBaseURL:       srv.URL,
		SearchAPIBaseURL: srv.URL,
		MaxComments:      10,
		Workers:          3,
	}, logger)
	h.now = func() time.Time { return time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC) }

	records, err := h.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}

	first := records[0]
	if first.Company != "Canva" || first.Location != "Sydney, Australia" || first.Title != "Graduate Software Engineer" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.URL != "https://canva.com/careers/1" {
		t.Fatalf("unexpected first url: %q", first.URL)
	}
	if first.PostedText != "2024-01-01T18:00:00Z" || first.Source != HackerNewsName {
		t.Fatalf("unexpected first record details: %+v", first)
	}

	second := records[1]
	if second.Title != "Junior Developer" || second.Location != "Melbourne" || second.Company != "Acme Corp" {
		t.Fatalf("unexpected second record: %+v", second)
	}
	if second.URL != "https://news.ycombinator.com/item?id=12" {
		t.Fatalf("expected permalink, got %q", second.URL)
	}
	if second.IdentityURL != "https://news.ycombinator.com/item/12" {
		t.Fatalf("expected item id in identity url, got %q", second.IdentityURL)
	}
	if first.IdentityURL != "" {
		t.Fatalf("linked comments are identified by their link, got %q", first.IdentityURL)
	}
	if second.Salary != "$80k - $100k" {
		t.Fatalf("unexpected salary: %q", second.Salary)
	}
}

func TestHackerNewsMaxComments(t *testing.T) {
	t.Parallel()

	items := map[int]hnItem{
		100: {ID: 100, Title: "Ask HN: Who is hiring? (January 2024)", By: "whoishiring", Time: 1704128400, Kids: []int{11, 12}},
		11:  {ID: 11, Time: 1704132000, Text: `A | Perth | Software Intern`},
		12:  {ID: 12, Time: 1704132000, Text: `B | Hobart | Data Analyst`},
	}
	srv := hnServer(t, items)
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	h := NewHackerNews(NewFetcher(srv.Client(), nil, 0, "ua", logger), HackerNewsOptions{
		APIBaseURL:       srv.URL,
		SearchAPIBaseURL: srv.URL,
		MaxComments:      1,
		Workers:          2,
	}, logger)

	records, err := h.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].Company != "A" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestHackerNewsNoThread(t *testing.T) {
	t.Parallel()

	srv := hnServer(t, map[int]hnItem{
		100: {ID: 100, Title: "Show HN: something", By: "someone"},
	})
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	h := NewHackerNews(NewFetcher(srv.Client(), nil, 0, "ua", logger), HackerNewsOptions{
		APIBaseURL:       srv.URL,
		SearchAPIBaseURL: srv.URL,
	}, logger)

	records, err := h.Fetch(context.Background())
	if err != nil || len(records) != 0 {
		t.Fatalf("unexpected result: %+v, %v", records, err)
	}
}

func TestParseHNComment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		html     string
		removed  bool
		ok       bool
		title    string
		location string
	}{
		{name: "header", html: "Foo | Brisbane | Junior Engineer | Hybrid", ok: true, title: "Junior Engineer", location: "Brisbane"},
		{name: "remote header", html: "Foo | REMOTE<p>Role: Backend Engineer", ok: true, title: "Backend Engineer", location: "REMOTE"},
		{name: "remote inferred", html: "Foo (remote only)<p>Position: Platform Engineer", ok: true, title: "Platform Engineer", location: "Remote"},
		{name: "entities", html: "Foo &amp; Bar | Sydney | Graduate &#x2F; Intern", ok: true, title: "Graduate / Intern", location: "Sydney"},
		{name: "removed", html: "Foo | Sydney | Intern", removed: true},
		{name: "empty", html: "   "},
		{name: "no role", html: "Foo"},
	}
	for _, c := range cases {
		rec, ok := ParseHNComment(7, c.html, 0, c.removed)
		if ok != c.ok {
			t.Fatalf("%s: expected ok=%v, got %v (%+v)", c.name, c.ok, ok, rec)
		}
		if !ok {
			continue
		}
		if rec.Title != c.title || rec.Location != c.location {
			t.Fatalf("%s: unexpected record: %+v", c.name, rec)
		}
		if rec.PostedText != "" {
			t.Fatalf("%s: expected no posted text, got %q", c.name, rec.PostedText)
		}
	}
}
