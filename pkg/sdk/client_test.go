package persona

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithAPIKey("secret")), srv
}

func TestSearch_BuildsQueryAndDecodes(t *testing.T) {
	var gotQuery, gotAuth string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(SearchResult{
			Products:     []Product{{ID: "p1", Name: "Headphones", Score: 0.9}},
			Mode:         "semantic",
			TotalResults: 1,
		})
	})

	res, err := client.Search(context.Background(), SearchParams{
		Query:         "wireless headphones",
		Limit:         5,
		MinSimilarity: 0.7,
		Category:      "audio",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	params, err := url.ParseQuery(gotQuery)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	want := map[string]string{
		"q":              "wireless headphones",
		"limit":          "5",
		"min_similarity": "0.7",
		"category":       "audio",
	}
	for k, v := range want {
		if got := params.Get(k); got != v {
			t.Errorf("param %s = %q, want %q", k, got, v)
		}
	}
	if res.Mode != "semantic" || len(res.Products) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestProfile_NotFound(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code": "not_found", "message": "profile not found",
		})
	})

	_, err := client.Profile(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("expected *APIError")
	}
	if apiErr.Code != "not_found" || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestPublishEvent_ReturnsEntryID(t *testing.T) {
	var got Event
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/events" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"entry_id": "1692-0"})
	})

	id, err := client.PublishEvent(context.Background(), Event{
		MessageID:  "m1",
		UserID:     "u1",
		EventType:  "product_view",
		ProductID:  "p1",
		OccurredAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}
	if id != "1692-0" {
		t.Errorf("entry id = %q", id)
	}
	if got.MessageID != "m1" || got.EventType != "product_view" {
		t.Errorf("unexpected published event: %+v", got)
	}
}

func TestUnauthorized(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code": "unauthorized", "message": "invalid or missing API key",
		})
	})

	if _, err := client.Search(context.Background(), SearchParams{Query: "x"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

// A degraded health payload arrives with HTTP 503 but must decode, not error.
func TestHealth_UnhealthyStillDecodes(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(Health{
			Status: "error",
			Checks: map[string]string{"database": "error"},
		})
	})

	h, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "error" || h.Checks["database"] != "error" {
		t.Errorf("unexpected health: %+v", h)
	}
}

func TestClearCache(t *testing.T) {
	var gotMethod string
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.ClearCache(context.Background()); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", gotMethod)
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	})

	_, err := client.Search(context.Background(), SearchParams{Query: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Code != "unknown" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}
