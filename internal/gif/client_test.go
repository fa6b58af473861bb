package gif

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestClient_SearchParsesUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("Expected api_key test-key, got %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "cats" {
			t.Errorf("Expected query cats, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"title":"funny cat","images":{"fixed_height":{"url":"https://g.test/1.gif"}}},
			{"title":"","images":{"fixed_height":{"url":"https://g.test/2.gif"}}},
			{"title":"broken","images":{"fixed_height":{"url":""}}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key")
	c.baseURL = srv.URL

	got := c.Search(context.Background(), "cats")
	want := []GIF{
		{Name: "funny cat", URL: "https://g.test/1.gif"},
		{Name: "cats", URL: "https://g.test/2.gif"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestClient_SearchFallsBackWithoutKey(t *testing.T) {
	c := NewClient("")

	got := c.Search(context.Background(), "anything")
	if len(got) != 5 {
		t.Fatalf("Expected 5 fallback results, got %d", len(got))
	}
	for _, g := range got {
		if g.Name == "" || g.URL == "" {
			t.Errorf("Expected populated fallback entry, got %+v", g)
		}
	}
}

func TestClient_SearchFallsBackOnUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("test-key")
	c.baseURL = srv.URL

	if got := c.Search(context.Background(), "cats"); len(got) != 5 {
		t.Errorf("Expected fallback results on 500, got %d", len(got))
	}
}

func TestFallback_DeterministicPerQuery(t *testing.T) {
	first := fallback("dogs")
	second := fallback("dogs")
	if !reflect.DeepEqual(first, second) {
		t.Error("Expected identical results for repeated query")
	}

	other := fallback("zebras")
	if reflect.DeepEqual(first, other) {
		t.Error("Expected different rotation for a different query")
	}
}
