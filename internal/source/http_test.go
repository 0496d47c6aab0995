package source_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/p-n-ai/pai-quiz/internal/source"
)

func TestHTTPSource_Questions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/questions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(validPayload))
	}))
	defer server.Close()

	src := source.NewHTTPSource(server.URL+"/", source.WithHTTPClient(server.Client()))

	got, err := src.Questions(context.Background())
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Questions() = %d, want 2", len(got))
	}
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"not found", http.StatusNotFound, "missing"},
		{"malformed", http.StatusOK, `{"not": "questions"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := source.NewHTTPSource(server.URL).Questions(context.Background())
			if err == nil {
				t.Error("Questions() should return error")
			}
		})
	}
}

func TestHTTPSource_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if _, err := source.NewHTTPSource(url).Questions(context.Background()); err == nil {
		t.Error("Questions() should fail for a closed server")
	}
}
