package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubClient struct {
	text string
	err  error
}

func (s *stubClient) Generate(context.Context, string) (string, error) { return s.text, s.err }
func (s *stubClient) Name() string                                     { return "stub" }

func TestRouterPrimaryWins(t *testing.T) {
	r := NewRouter(&stubClient{text: "from primary"}, &stubClient{text: "from secondary"})
	got, err := r.Generate(context.Background(), "p")
	if err != nil || got != "from primary" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestRouterFallsBackToSecondary(t *testing.T) {
	r := NewRouter(&stubClient{err: errors.New("down")}, &stubClient{text: "from secondary"})
	got, err := r.Generate(context.Background(), "p")
	if err != nil || got != "from secondary" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestRouterAllFail(t *testing.T) {
	r := NewRouter(&stubClient{err: errors.New("down")}, &stubClient{err: ErrEmptyResponse})
	if _, err := r.Generate(context.Background(), "p"); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestRouterNoProvidersConfigured(t *testing.T) {
	r := NewRouter(nil, nil)
	if _, err := r.Generate(context.Background(), "p"); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("err = %v, want ErrNoProvider", err)
	}
}

func TestRouterBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	primary := &stubClient{err: errors.New("down")}
	r := NewRouter(primary, &stubClient{text: "backup"})

	for i := 0; i < 5; i++ {
		got, err := r.Generate(context.Background(), "p")
		if err != nil || got != "backup" {
			t.Fatalf("call %d: got %q, %v", i, got, err)
		}
	}
	// After three consecutive failures the breaker is open; a recovered
	// primary is not consulted until the breaker times out.
	primary.err = nil
	primary.text = "recovered"
	got, err := r.Generate(context.Background(), "p")
	if err != nil || got != "backup" {
		t.Fatalf("expected breaker to keep routing to secondary, got %q, %v", got, err)
	}
}

func TestChatClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer key123" {
			t.Errorf("auth header = %q", got)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Drafted reply. "}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "key123", "test-model", srv.Client())
	got, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Drafted reply." {
		t.Fatalf("got %q", got)
	}
}

func TestChatClientQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "", "test-model", srv.Client())
	if _, err := c.Generate(context.Background(), "hello"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestChatClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "", "test-model", srv.Client())
	if _, err := c.Generate(context.Background(), "hello"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		w.Write([]byte(`{"response":"local reply","done":true}`))
	}))
	defer srv.Close()

	c := NewOllama(srv.URL, "llama3.2", srv.Client())
	got, err := c.Generate(context.Background(), "hello")
	if err != nil || got != "local reply" {
		t.Fatalf("got %q, %v", got, err)
	}
}
