package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/reelq/internal/models"
	"github.com/desertthunder/reelq/internal/queue"
	"github.com/desertthunder/reelq/internal/shared"
	tu "github.com/desertthunder/reelq/internal/testing"
	"golang.org/x/time/rate"
)

func newTestServer(t *testing.T, store queue.Store, replayer queue.Replayer, online queue.Connectivity) (*httptest.Server, *queue.OfflineActionQueue) {
	t.Helper()
	logger := shared.NewLogger(io.Discard)
	q := queue.New(queue.Options{Store: store, Replayer: replayer, Logger: logger, Connectivity: online})
	srv := httptest.NewServer(NewQueueRouter(NewQueueHandler(q, online, logger), logger, nil))
	t.Cleanup(srv.Close)
	return srv, q
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestQueueHandler(t *testing.T) {
	addBody := `{"type":"ADD_TO_WATCHLIST","url":"/api/watchlist","method":"POST","body":"{\"movie_id\":603}"}`

	t.Run("POST and GET /actions", func(t *testing.T) {
		srv, _ := newTestServer(t, tu.NewMemoryStore(), nil, nil)

		resp := doRequest(t, http.MethodPost, srv.URL+"/actions", addBody)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d", resp.StatusCode)
		}
		var created map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if created["id"] == "" {
			t.Fatal("expected id in response")
		}

		resp = doRequest(t, http.MethodGet, srv.URL+"/actions", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var actions []models.QueuedAction
		if err := json.NewDecoder(resp.Body).Decode(&actions); err != nil {
			t.Fatalf("failed to decode actions: %v", err)
		}
		if len(actions) != 1 || actions[0].ID != created["id"] || actions[0].RetryCount != 0 {
			t.Errorf("unexpected actions %+v", actions)
		}
	})

	t.Run("POST /actions rejects bad input", func(t *testing.T) {
		srv, _ := newTestServer(t, tu.NewMemoryStore(), nil, nil)

		tests := []struct {
			name string
			body string
		}{
			{name: "malformed json", body: `{"type":`},
			{name: "unknown field", body: `{"type":"ADD_TO_WATCHLIST","url":"/x","method":"POST","extra":1}`},
			{name: "invalid action", body: `{"type":"RATE","url":"/x","method":"POST"}`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := doRequest(t, http.MethodPost, srv.URL+"/actions", tt.body)
				if resp.StatusCode != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", resp.StatusCode)
				}
			})
		}
	})

	t.Run("storage unavailable", func(t *testing.T) {
		store := tu.NewMemoryStore()
		store.OpenErr = errors.New("read-only file system")
		srv, _ := newTestServer(t, store, nil, nil)

		if resp := doRequest(t, http.MethodPost, srv.URL+"/actions", addBody); resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("POST: expected 503, got %d", resp.StatusCode)
		}
		if resp := doRequest(t, http.MethodGet, srv.URL+"/actions", ""); resp.StatusCode != http.StatusOK {
			t.Errorf("GET: expected 200 with empty list, got %d", resp.StatusCode)
		}
		if resp := doRequest(t, http.MethodGet, srv.URL+"/health", ""); resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("health: expected 503, got %d", resp.StatusCode)
		}
	})

	t.Run("DELETE /actions/{id} is idempotent", func(t *testing.T) {
		srv, q := newTestServer(t, tu.NewMemoryStore(), nil, nil)
		id, err := q.AddAction(context.Background(), models.ActionInput{Type: models.AddToWatchlist, URL: "/api/watchlist", Method: "POST"})
		if err != nil {
			t.Fatalf("AddAction failed: %v", err)
		}

		for i := 0; i < 2; i++ {
			if resp := doRequest(t, http.MethodDelete, srv.URL+"/actions/"+id, ""); resp.StatusCode != http.StatusNoContent {
				t.Errorf("call %d: expected 204, got %d", i+1, resp.StatusCode)
			}
		}
		if got := q.GetActions(context.Background()); len(got) != 0 {
			t.Errorf("expected empty queue, got %+v", got)
		}
	})

	t.Run("DELETE /actions clears", func(t *testing.T) {
		srv, q := newTestServer(t, tu.NewMemoryStore(), nil, nil)
		for i := 0; i < 3; i++ {
			doRequest(t, http.MethodPost, srv.URL+"/actions", addBody)
		}

		if resp := doRequest(t, http.MethodDelete, srv.URL+"/actions", ""); resp.StatusCode != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", resp.StatusCode)
		}
		if got := q.GetActions(context.Background()); len(got) != 0 {
			t.Errorf("expected empty queue, got %d", len(got))
		}
	})

	t.Run("POST /process returns summary", func(t *testing.T) {
		replayer := &tu.ReplayFunc{}
		srv, _ := newTestServer(t, tu.NewMemoryStore(), replayer, nil)
		doRequest(t, http.MethodPost, srv.URL+"/actions", addBody)

		resp := doRequest(t, http.MethodPost, srv.URL+"/process", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var summary queue.Summary
		if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
			t.Fatalf("failed to decode summary: %v", err)
		}
		if summary.Succeeded != 1 || replayer.CallCount() != 1 {
			t.Errorf("unexpected summary %+v", summary)
		}
	})

	t.Run("POST /process while offline", func(t *testing.T) {
		replayer := &tu.ReplayFunc{}
		offline := queue.OnlineFunc(func() bool { return false })
		srv, _ := newTestServer(t, tu.NewMemoryStore(), replayer, offline)
		doRequest(t, http.MethodPost, srv.URL+"/actions", addBody)

		resp := doRequest(t, http.MethodPost, srv.URL+"/process", "")
		var summary queue.Summary
		if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
			t.Fatalf("failed to decode summary: %v", err)
		}
		if !summary.Offline || replayer.CallCount() != 0 {
			t.Errorf("expected offline no-op, got %+v", summary)
		}
	})

	t.Run("POST /process conflicts with a running pass", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		replayer := &tu.ReplayFunc{Fn: func(context.Context, models.QueuedAction) error {
			close(started)
			<-release
			return nil
		}}
		srv, q := newTestServer(t, tu.NewMemoryStore(), replayer, nil)
		doRequest(t, http.MethodPost, srv.URL+"/actions", addBody)

		done := make(chan struct{})
		go func() {
			defer close(done)
			q.ProcessQueue(context.Background())
		}()
		<-started

		resp := doRequest(t, http.MethodPost, srv.URL+"/process", "")
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("expected 409, got %d", resp.StatusCode)
		}

		close(release)
		<-done
	})

	t.Run("GET /health", func(t *testing.T) {
		srv, q := newTestServer(t, tu.NewMemoryStore(), nil, nil)
		q.AddAction(context.Background(), models.ActionInput{Type: models.AddToWatchlist, URL: "/api/watchlist", Method: "POST"})

		resp := doRequest(t, http.MethodGet, srv.URL+"/health", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var health healthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode health: %v", err)
		}
		if !health.Available || !health.Online || health.Pending != 1 {
			t.Errorf("unexpected health %+v", health)
		}
	})

	t.Run("unsupported method", func(t *testing.T) {
		srv, _ := newTestServer(t, tu.NewMemoryStore(), nil, nil)

		if resp := doRequest(t, http.MethodPut, srv.URL+"/actions", "{}"); resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", resp.StatusCode)
		}
	})
}

func TestQueueHandler_EncodeFailure(t *testing.T) {
	var logs strings.Builder
	h := NewQueueHandler(nil, nil, shared.NewLogger(&logs))

	rec := httptest.NewRecorder()
	h.writeJSON(rec, http.StatusOK, map[string]any{"progress": make(chan int)})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(logs.String(), "failed to encode response") {
		t.Errorf("expected encode failure to be logged, got %q", logs.String())
	}
}

func TestBasicRouter(t *testing.T) {
	t.Run("Handle filters by method", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle("get", "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("pong"))
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(tag("first"), tag("second"))
		r.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			order = append(order, "handler")
		}))

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestMiddleware(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("RateLimitMiddleware", func(t *testing.T) {
		limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
		h := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected first request to pass, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", rec.Code)
		}
	})

	t.Run("RecoverMiddleware", func(t *testing.T) {
		h := RecoverMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("LoggingMiddleware passes status through", func(t *testing.T) {
		h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("expected 418, got %d", rec.Code)
		}
	})
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, addr, http.NotFoundHandler(), shared.NewLogger(io.Discard))
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned error: %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
