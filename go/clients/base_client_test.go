package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMakeRequest_SendsHeadersAndJSON(t *testing.T) {
	var gotHeader, gotContentType string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Test")
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL + "/")
	c.SetHeader("X-Test", "abc")

	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.Post(context.Background(), "/things/", map[string]string{"name": "x"}, &out); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if !out.OK {
		t.Errorf("expected ok=true")
	}
	if gotHeader != "abc" {
		t.Errorf("X-Test = %q, want abc", gotHeader)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody["name"] != "x" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestMakeRequest_ExtraHeadersOverride(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-User-ID")
	}))
	defer srv.Close()

	c := NewBaseClient(srv.URL)
	c.SetHeader("X-User-ID", "old")
	if _, err := c.MakeRequest(context.Background(), http.MethodGet, "/", nil, map[string]string{"X-User-ID": "new"}); err != nil {
		t.Fatal(err)
	}
	if got != "new" {
		t.Errorf("header = %q, want new", got)
	}
}

func TestMakeRequest_APIErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"string detail", `{"detail":"Assignment not found"}`, "Assignment not found"},
		{"object detail", `{"detail":{"error":"Missing X-User-ID Header"}}`, "Missing X-User-ID Header"},
		{"validation list", `{"detail":[{"msg":"too long"},{"msg":"bad pattern"}]}`, "too long; bad pattern"},
		{"top-level error", `{"error":"Error saving new user to database"}`, "Error saving new user to database"},
		{"not json", `boom`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewBaseClient(srv.URL).Get(context.Background(), "/x/", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d", apiErr.StatusCode)
			}
			if apiErr.Detail != tt.detail {
				t.Errorf("detail = %q, want %q", apiErr.Detail, tt.detail)
			}
			if StatusCode(err) != http.StatusBadRequest {
				t.Errorf("StatusCode(err) = %d", StatusCode(err))
			}
		})
	}
}

func TestMakeRequest_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewBaseClient(url).Get(context.Background(), "/", nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if StatusCode(err) != 0 {
		t.Errorf("transport error should carry no status")
	}
}

func TestDoJSON_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out map[string]any
	if err := NewBaseClient(srv.URL).Delete(context.Background(), "/a/1/"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := NewBaseClient(srv.URL).Get(context.Background(), "/a/1/", &out); err != nil {
		t.Fatalf("Get with empty body: %v", err)
	}
	if out != nil {
		t.Errorf("expected nil map, got %v", out)
	}
}
