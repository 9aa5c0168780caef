package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	c, err := New(url, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestDo_RetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithRetry(2, time.Millisecond))
	err := c.Health(context.Background())
	if !IsServerError(err) {
		t.Fatalf("expected server error, got %v", err)
	}
	if StatusOf(err) != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", StatusOf(err))
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", got)
	}
}

func TestDo_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetChat(context.Background(), "c1")
	if !IsIrrecoverable(err) {
		t.Fatalf("expected irrecoverable error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", calls.Load())
	}
}

func TestDo_UnauthorizedCallsHook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var hooked atomic.Int32
	c := newTestClient(t, srv.URL, WithUnauthorizedHandler(func() { hooked.Add(1) }))
	_, err := c.ListChats(context.Background())
	if StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
	if hooked.Load() != 1 {
		t.Fatalf("unauthorized hook called %d times", hooked.Load())
	}
}

func TestDo_NetworkErrorHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, WithRetry(1, time.Millisecond))
	err := c.Health(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if StatusOf(err) != 0 {
		t.Fatalf("network errors carry status 0, got %d", StatusOf(err))
	}
}

func TestDo_CancelledContext(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Health(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTokenTransport(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	token := "abc"
	c := newTestClient(t, srv.URL, WithToken(func() string { return token }))
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	token = ""
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "Bearer abc" || seen[1] != "" {
		t.Fatalf("unexpected Authorization headers: %q", seen)
	}
}

func TestDo_ConcurrentCallsRetryIndependently(t *testing.T) {
	var mu sync.Mutex
	failed := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		first := !failed[r.URL.Path]
		failed[r.URL.Path] = true
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"x","title":"t"}`))
	}))
	defer srv.Close()

	// each call gets exactly one retry; shared retry state would starve one of them
	c := newTestClient(t, srv.URL, WithRetry(1, time.Millisecond))
	ids := []string{"a", "b", "c", "d"}
	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = c.GetChat(context.Background(), id)
		}(i, id)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("chat %s: %v", ids[i], err)
		}
	}
}

func TestChatEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chats":[{"id":"c1","title":"Family","participants":["A","B"],"message_count":2}]}`))
	})
	mux.HandleFunc("/chat/c1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "hello world" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"chat_id":"c1","messages":[{"id":"m1","sender":"A","content":"hello world"}]}`))
	})
	mux.HandleFunc("/chat/c1/export", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK\x03\x04raw"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	chats, err := c.ListChats(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 1 || chats[0].ID != "c1" || chats[0].MessageCount != 2 {
		t.Fatalf("unexpected chats: %+v", chats)
	}

	msgs, err := c.SearchMessages(ctx, "c1", "hello world")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	raw, err := c.ExportChat(ctx, "c1", "zip")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if string(raw) != "PK\x03\x04raw" {
		t.Fatalf("export body altered: %q", raw)
	}

	if _, err := c.GetChat(ctx, ""); err == nil {
		t.Fatalf("expected error for empty chat id")
	}
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{step: 10 * time.Millisecond}
	for i := 1; i <= 3; i++ {
		if got := b.NextBackOff(); got != time.Duration(i)*10*time.Millisecond {
			t.Fatalf("attempt %d: got %v", i, got)
		}
	}
	b.Reset()
	if got := b.NextBackOff(); got != 10*time.Millisecond {
		t.Fatalf("after reset: got %v", got)
	}
}

func TestOptionValidation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty base URL")
	}
	if _, err := New("http://example.com", WithRetry(-1, time.Second)); err == nil {
		t.Fatalf("expected error for negative retries")
	}
	if _, err := New("http://example.com", WithHTTPTimeout(0)); err == nil {
		t.Fatalf("expected error for zero timeout")
	}
	if _, err := New("http://example.com", WithHTTPClient(nil)); err == nil {
		t.Fatalf("expected error for nil http client")
	}
	c, err := New("http://example.com/", WithHTTPTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.BaseURL() != "http://example.com" {
		t.Fatalf("trailing slash not trimmed: %s", c.BaseURL())
	}
	if c.http.Timeout != 5*time.Second {
		t.Fatalf("http timeout not set")
	}
}
