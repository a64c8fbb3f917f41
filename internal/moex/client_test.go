package moex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientFetch(t *testing.T) {
	t.Run("substitutes placeholders and applies defaults", func(t *testing.T) {
		var gotPath string
		var gotQuery map[string][]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.Query()
			_ = json.NewEncoder(w).Encode(BlockMap{})
		}))
		defer srv.Close()

		client := NewClient(srv.Client(), srv.URL, "ru")
		_, err := client.Fetch(context.Background(),
			"/engines/{engine}/markets/{market}/securities",
			Params{"engine": "stock", "market": "shares", "tradingsession": "3"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if gotPath != "/engines/stock/markets/shares/securities.json" {
			t.Errorf("unexpected path %q", gotPath)
		}
		for key, want := range map[string]string{
			"lang":           "ru",
			"iss.json":       "compact",
			"iss.meta":       "off",
			"tradingsession": "3",
		} {
			if got := gotQuery[key]; len(got) != 1 || got[0] != want {
				t.Errorf("expected query %s=%s, got %v", key, want, got)
			}
		}
		if _, ok := gotQuery["engine"]; ok {
			t.Error("path placeholder leaked into the query string")
		}
	})

	t.Run("parses block map", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"securities": map[string]any{
					"columns": []string{"SECID", "LAST"},
					"data":    [][]any{{"SBER", 285.5}},
				},
			})
		}))
		defer srv.Close()

		client := NewClient(srv.Client(), srv.URL, "")
		blocks, err := client.Fetch(context.Background(), "/securities", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records := NormalizeBlock(blocks, "securities")
		if len(records) != 1 || records[0].String("secid") != "SBER" {
			t.Errorf("unexpected records: %v", records)
		}
	})

	t.Run("non-2xx becomes a FetchError with the status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		client := NewClient(srv.Client(), srv.URL, "")
		_, err := client.Fetch(context.Background(), "/securities", nil)

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *FetchError, got %T: %v", err, err)
		}
		if fetchErr.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", fetchErr.StatusCode)
		}
	})

	t.Run("malformed body becomes a FetchError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		}))
		defer srv.Close()

		client := NewClient(srv.Client(), srv.URL, "")
		_, err := client.Fetch(context.Background(), "/securities", nil)

		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *FetchError, got %T: %v", err, err)
		}
		if fetchErr.Err == nil {
			t.Error("expected a wrapped decode error")
		}
	})

	t.Run("unresolved placeholder fails before any request", func(t *testing.T) {
		client := NewClient(nil, "http://unreachable.invalid", "")
		_, err := client.Fetch(context.Background(), "/engines/{engine}/securities", nil)
		if err == nil {
			t.Fatal("expected error for unresolved placeholder")
		}
	})

	t.Run("sends a JSON body on POST", func(t *testing.T) {
		var gotMethod, gotContentType string
		var gotBody map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotContentType = r.Header.Get("Content-Type")
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_ = json.NewEncoder(w).Encode(BlockMap{})
		}))
		defer srv.Close()

		client := NewClient(srv.Client(), srv.URL, "")
		_, err := client.FetchWithBody(context.Background(), http.MethodPost, "/filter",
			nil, map[string]string{"q": "SBER"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if gotMethod != http.MethodPost {
			t.Errorf("expected POST, got %s", gotMethod)
		}
		if gotContentType != "application/json" {
			t.Errorf("expected application/json, got %q", gotContentType)
		}
		if gotBody["q"] != "SBER" {
			t.Errorf("expected body q=SBER, got %v", gotBody)
		}
	})
}
