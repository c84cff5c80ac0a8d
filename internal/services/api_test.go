package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/shared"
	tu "github.com/desertthunder/reelq/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected baseURL 'http://example.com', got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", nil)

			if srv.BaseURL() != "http://localhost:3000" {
				t.Errorf("expected default baseURL 'http://localhost:3000', got %s", srv.BaseURL())
			}
		})

		t.Run("With Nil Client", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)

			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("ResolveURL", func(t *testing.T) {
		srv := NewAPIService("http://example.com/v1", nil)

		tests := []struct {
			name   string
			target string
			want   string
		}{
			{name: "relative with leading slash", target: "/api/watchlist", want: "http://example.com/v1/api/watchlist"},
			{name: "relative without leading slash", target: "api/watchlist/603", want: "http://example.com/v1/api/watchlist/603"},
			{name: "keeps query", target: "/api/watchlist?page=2", want: "http://example.com/v1/api/watchlist?page=2"},
			{name: "absolute passes through", target: "https://other.example/api/watchlist", want: "https://other.example/api/watchlist"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := srv.ResolveURL(tt.target)
				if err != nil {
					t.Fatalf("ResolveURL failed: %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %s, got %s", tt.want, got)
				}
			})
		}

		t.Run("Invalid URL", func(t *testing.T) {
			if _, err := srv.ResolveURL("http://[::1"); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})

	t.Run("Do", func(t *testing.T) {
		t.Run("Sends Method Body And Default Content-Type", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if r.URL.Path != "/api/watchlist" {
					t.Errorf("expected path '/api/watchlist', got %s", r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("expected default content type, got %s", ct)
				}
				if r.Header.Get("X-Client") != "reelq" {
					t.Errorf("expected custom header to be merged, got %q", r.Header.Get("X-Client"))
				}
				body, _ := io.ReadAll(r.Body)
				if string(body) != `{"movie_id":603}` {
					t.Errorf("unexpected body %s", body)
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(map[string]string{"status": "created"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			resp, err := srv.Do(context.Background(), http.MethodPost, "/api/watchlist",
				[]byte(`{"movie_id":603}`), map[string]string{"X-Client": "reelq"})

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.StatusCode != http.StatusCreated || !resp.OK() {
				t.Errorf("expected status 201, got %d", resp.StatusCode)
			}
			if !resp.IsJSON || resp.JSONData == nil {
				t.Error("expected response to be JSON")
			}
		})

		t.Run("Action Headers Override Content-Type", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if ct := r.Header.Get("Content-Type"); ct != "text/plain" {
					t.Errorf("expected overridden content type, got %s", ct)
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, nil)
			_, err := srv.Do(context.Background(), http.MethodPut, "/x", []byte("hi"), map[string]string{"Content-Type": "text/plain"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("plain text response"))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/test")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON {
				t.Error("expected response to not be JSON")
			}
			if string(resp.Body) != "plain text response" {
				t.Errorf("unexpected body %s", resp.Body)
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService("http://example.com", nil)
			if _, err := srv.Do(context.Background(), "BAD METHOD", "/x", nil, nil); err == nil {
				t.Fatal("expected error for invalid method")
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed")),
			}

			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected request failed error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     make(http.Header),
				}, nil),
			}

			_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/test")
			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected read error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := NewAPIService(server.URL, nil).Get(ctx, "/test")
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})
	})

	t.Run("Execute", func(t *testing.T) {
		in := models.ActionInput{Type: models.DeleteFromWatchlist, URL: "/api/watchlist/603", Method: http.MethodDelete}

		t.Run("Success", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete {
					t.Errorf("expected DELETE, got %s", r.Method)
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			if _, err := NewAPIService(server.URL, nil).Execute(context.Background(), in); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})

		t.Run("Non-Success Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, nil).Execute(context.Background(), in)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			if resp == nil || resp.StatusCode != http.StatusInternalServerError {
				t.Error("expected response to be returned with the error")
			}
		})

		t.Run("Transport Error Keeps Cause", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, context.DeadlineExceeded)}

			_, err := NewAPIService("http://example.com", client).Execute(context.Background(), in)
			if !errors.Is(err, shared.ErrAPIRequest) || !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("expected ErrAPIRequest wrapping DeadlineExceeded, got %v", err)
			}
		})
	})
}

func TestHTTPReplayer(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/api/watchlist/404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	replayer := NewHTTPReplayer(NewAPIService(server.URL, nil))
	ctx := context.Background()

	ok := models.QueuedAction{ID: "a1", Type: models.UpdateWatchlist, URL: "/api/watchlist/603", Method: http.MethodPut, Body: `{"status":"watched"}`}
	if err := replayer.Replay(ctx, ok); err != nil {
		t.Errorf("expected success, got %v", err)
	}

	missing := models.QueuedAction{ID: "a2", Type: models.DeleteFromWatchlist, URL: "/api/watchlist/404", Method: http.MethodDelete}
	if err := replayer.Replay(ctx, missing); !errors.Is(err, shared.ErrAPIRequest) {
		t.Errorf("expected ErrAPIRequest, got %v", err)
	}

	if len(got) != 2 || got[0] != "PUT /api/watchlist/603" || got[1] != "DELETE /api/watchlist/404" {
		t.Errorf("unexpected requests %v", got)
	}
}

func TestNewAuthenticatedClient(t *testing.T) {
	t.Run("Sends Bearer Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
				t.Errorf("expected bearer token, got %q", auth)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewAuthenticatedClient(context.Background(), "secret", time.Second)
		if client.Timeout != time.Second {
			t.Errorf("expected timeout to be set, got %s", client.Timeout)
		}
		if _, err := NewAPIService(server.URL, client).Get(context.Background(), "/"); err != nil {
			t.Fatalf("request failed: %v", err)
		}
	})

	t.Run("Empty Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth := r.Header.Get("Authorization"); auth != "" {
				t.Errorf("expected no authorization header, got %q", auth)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewAuthenticatedClient(context.Background(), "", 0)
		if _, err := NewAPIService(server.URL, client).Get(context.Background(), "/"); err != nil {
			t.Fatalf("request failed: %v", err)
		}
	})
}
