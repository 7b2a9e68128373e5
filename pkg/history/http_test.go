package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("conversation") != "c1" || q.Get("limit") != "100" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if q.Get("after") != "42" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"m1","conversation":"c1","sender":"bob","content":"hi","ts":43}],"hasNext":true}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, "tok", 100, 10)
	page, err := f.FetchPage(context.Background(), "c1", 42, 100)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if !page.HasNext || len(page.Messages) != 1 || page.Messages[0].ID != "m1" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestFetchPageNoCursorOmitsAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, present := r.URL.Query()["after"]; present {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[],"hasNext":false}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, "tok", 100, 10)
	page, err := f.FetchPage(context.Background(), "c1", NoCursor, 100)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.HasNext || len(page.Messages) != 0 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[],"hasNext":false}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, "tok", 100, 10)
	if _, err := f.FetchPage(context.Background(), "c1", NoCursor, 100); err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchPageExhaustedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, "tok", 100, 10)
	_, err := f.FetchPage(context.Background(), "c1", NoCursor, 100)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestFetchPageRejectionNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, "tok", 100, 10)
	_, err := f.FetchPage(context.Background(), "c1", NoCursor, 100)
	if err == nil || errors.Is(err, ErrTransient) {
		t.Fatalf("expected permanent failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("rejection must not be retried, got %d attempts", calls.Load())
	}
}
