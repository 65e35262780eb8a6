package opensearch

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mstgnz/multipay/infra/config"
	"github.com/stretchr/testify/require"
)

// fakeSearch is a minimal in-memory stand-in for the OpenSearch REST API
type fakeSearch struct {
	mu      sync.Mutex
	indices map[string]bool
	docs    map[string][]json.RawMessage
	queries []map[string]any
	failAll bool
}

func newFakeSearch(t *testing.T) (*fakeSearch, *httptest.Server) {
	t.Helper()
	f := &fakeSearch{
		indices: make(map[string]bool),
		docs:    make(map[string][]json.RawMessage),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSearch) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.failAll {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"type":"illegal_argument_exception"}}`)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/":
		io.WriteString(w, `{"version":{"number":"2.11.0","distribution":"opensearch"}}`)
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.indices[parts[0]] {
			w.WriteHeader(http.StatusNotFound)
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.indices[parts[0]] = true
		io.WriteString(w, `{"acknowledged":true}`)
	case len(parts) >= 2 && parts[1] == "_doc":
		body, _ := io.ReadAll(r.Body)
		f.docs[parts[0]] = append(f.docs[parts[0]], body)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"result":"created"}`)
	case len(parts) == 2 && parts[1] == "_search":
		var query map[string]any
		_ = json.NewDecoder(r.Body).Decode(&query)
		f.queries = append(f.queries, query)

		if _, ok := query["aggs"]; ok {
			io.WriteString(w, `{"hits":{"hits":[]},"aggregations":{"avg_duration_ms":{"value":120}}}`)
			return
		}
		hits := make([]map[string]json.RawMessage, 0, len(f.docs[parts[0]]))
		for _, doc := range f.docs[parts[0]] {
			hits = append(hits, map[string]json.RawMessage{"_source": doc})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"hits": hits}})
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{}`)
	}
}

func (f *fakeSearch) documents(index string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]any, 0, len(f.docs[index]))
	for _, raw := range f.docs[index] {
		var doc map[string]any
		_ = json.Unmarshal(raw, &doc)
		out = append(out, doc)
	}
	return out
}

func (f *fakeSearch) lastQuery() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return nil
	}
	return f.queries[len(f.queries)-1]
}

func newTestClient(t *testing.T, url string, enabled bool) *Client {
	t.Helper()
	client, err := NewClient(&config.AppConfig{
		OpenSearchURL:    url,
		EnableOpenSearch: enabled,
	})
	require.NoError(t, err)
	return client
}
