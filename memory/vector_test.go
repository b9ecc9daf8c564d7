package memory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetrieveRoundTrip(t *testing.T) {
	embed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer embed.Close()

	var matchedPath string
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		matchedPath = req.URL.Path
		w.Write([]byte(`[{"subject":"old invoice","sender":"b@x.example","similarity":0.91}]`))
	}))
	defer store.Close()

	m := New(store.URL, "key", embed.URL, nil)
	got := m.Retrieve(context.Background(), "invoice overdue", 3)
	require.Len(t, got, 1)
	require.Equal(t, "old invoice", got[0].Subject)
	require.Equal(t, "/rest/v1/rpc/match_emails", matchedPath)
}

func TestRetrieveUnavailableReturnsEmpty(t *testing.T) {
	m := New("http://127.0.0.1:0", "", "http://127.0.0.1:0", nil)
	require.Empty(t, m.Retrieve(context.Background(), "anything", 3))

	var nilMem *VectorMemory
	require.Empty(t, nilMem.Retrieve(context.Background(), "anything", 3))
}

func TestWriteSwallowsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := New(srv.URL, "", "", nil)
	// Must not panic or return anything.
	m.Write(context.Background(), Record{MessageID: "m1"})

	var nilMem *VectorMemory
	nilMem.Write(context.Background(), Record{})
}
