package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

const adzunaFixture = `{
  "results": [
    {
      "title": "  Software   Internship ",
      "company": {"display_name": "Atlassian"},
      "location": {"display_name": "Sydney, New South Wales"},
      "redirect_url": "https://www.adzuna.com.au/land/ad/1?se=abc",
      "salary_min": 65000,
      "salary_max": 1250000.5,
      "created": "2024-01-01T09:00:00Z"
    },
    {
      "title": "Graduate Developer",
      "company": {},
      "location": {},
      "redirect_url": "https://www.adzuna.com.au/land/ad/2",
      "salary_min": 50000
    },
    {
      "title": "",
      "redirect_url": "https://www.adzuna.com.au/land/ad/3"
    }
  ]
}`

func TestAdzunaFetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/au/search/1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		q := r.URL.Query()
		if q.Get("app_id") != "id" || q.Get("app_key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if q.Get("results_per_page") != "20" || q.Get("sort_by") != "date" || q.Get("max_days_old") != "30" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("what") != "software intern" {
			t.Errorf("unexpected phrase: %q", q.Get("what"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(adzunaFixture))
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	a := NewAdzuna(NewFetcher(srv.Client(), nil, 0, "ua", logger), AdzunaOptions{
		BaseURL:  srv.URL + "/",
		AppID:    "id",
		AppKey:   "key",
		Searches: []string{"software intern"},
	}, logger)

	records, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}

	first := records[0]
	if first.Title != "Software Internship" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Salary != "$65,000 - $1,250,000" {
		t.Fatalf("unexpected salary: %q", first.Salary)
	}
	if first.PostedText != "2024-01-01T09:00:00Z" || first.Source != AdzunaName {
		t.Fatalf("unexpected first record: %+v", first)
	}

	second := records[1]
	if second.Company != "Unknown" || second.Location != "Australia" || second.Salary != "" {
		t.Fatalf("unexpected defaults: %+v", second)
	}
}

func TestAdzunaAllSearchesFail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	logger := zaptest.NewLogger(t)
	a := NewAdzuna(NewFetcher(srv.Client(), nil, 0, "ua", logger), AdzunaOptions{
		BaseURL:  srv.URL,
		Searches: []string{"a", "b"},
	}, logger)
	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestGroupThousands(t *testing.T) {
	t.Parallel()

	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		65000:    "65,000",
		1250000:  "1,250,000",
		-4200:    "-4,200",
		12345678: "12,345,678",
	}
	for in, want := range cases {
		if got := groupThousands(in); got != want {
			t.Fatalf("groupThousands(%d): expected %q, got %q", in, want, got)
		}
	}
}
