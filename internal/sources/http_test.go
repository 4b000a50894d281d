package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/vats98754/aus-job-fetcher/common/cache"
	"github.com/vats98754/aus-job-fetcher/common/cache/memory"
	"github.com/vats98754/aus-job-fetcher/internal/errors"
)

func TestFetcherCachesResponses(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("unexpected user agent: %q", ua)
		}
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := memory.New(cache.Options{})
	defer c.Close()
	f := NewFetcher(srv.Client(), c, time.Minute, "test-agent", zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		body, err := f.Get(context.Background(), srv.URL+"/page")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if string(body) != "hello" {
			t.Fatalf("unexpected body: %q", body)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected one upstream request, got %d", got)
	}
}

func TestFetcherWithoutCache(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"n":1}`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, 0, "ua", zaptest.NewLogger(t))
	for i := 0; i < 2; i++ {
		var v struct{ N int }
		if err := f.GetJSON(context.Background(), srv.URL, &v); err != nil || v.N != 1 {
			t.Fatalf("unexpected result: %+v, %v", v, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected two upstream requests, got %d", got)
	}
}

func TestFetcherStatusErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   errors.ErrorType
	}{
		{http.StatusNotFound, errors.ErrTypeNotFound},
		{http.StatusTooManyRequests, errors.ErrTypeRateLimit},
		{http.StatusServiceUnavailable, errors.ErrTypeUnavailable},
		{http.StatusTeapot, errors.ErrTypeInternal},
	}
	for _, c := range cases {
		status := c.status
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		f := NewFetcher(srv.Client(), nil, 0, "ua", zaptest.NewLogger(t))
		_, err := f.Get(context.Background(), srv.URL)
		srv.Close()
		if got := errors.TypeOf(err); got != c.want {
			t.Fatalf("status %d: expected %s, got %s (%v)", c.status, c.want, got, err)
		}
	}
}

func TestFetcherDecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), nil, 0, "ua", zaptest.NewLogger(t))
	var v map[string]interface{}
	if err := f.GetJSON(context.Background(), srv.URL, &v); !errors.Is(err, errors.ErrTypeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestFetcherDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewFetcher(srv.Client(), nil, 0, "ua", zaptest.NewLogger(t))
	_, err := f.Get(ctx, srv.URL)
	if !errors.Is(err, errors.ErrTypeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	got := redactURL("https://api.example.com/jobs?app_id=abc&app_key=secret&what=intern")
	if strings.Contains(got, "secret") || strings.Contains(got, "abc") {
		t.Fatalf("credentials leaked: %q", got)
	}
	if !strings.Contains(got, "what=intern") {
		t.Fatalf("unexpected redaction: %q", got)
	}

	plain := "https://example.com/a?b=c"
	if got := redactURL(plain); got != plain {
		t.Fatalf("unexpected change: %q", got)
	}
}
