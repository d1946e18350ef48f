package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/models"
)

// ===== Test Helper Functions =====

func newFakeES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

const searchHits = `{
	"hits": {
		"total": {"value": 14, "relation": "eq"},
		"hits": [
			{"_id": "job-1", "_source": {"title": "Go Engineer", "company_name": "Acme Corp", "location": "Berlin", "posted_at": "2026-03-14T10:00:00Z"}},
			{"_id": "job-2", "_source": {"title": "Platform Engineer", "company_name": "Globex", "location": "Remote", "posted_at": "2026-03-13T08:00:00Z"}}
		]
	}
}`

// ===== Tests =====

func TestBuildMatchQuery_FilterOnly(t *testing.T) {
	since := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	q := BuildMatchQuery(models.JobAlert{Keywords: "golang", Location: "Berlin"}, &since)

	raw, err := json.Marshal(q)
	require.NoError(t, err)

	var decoded struct {
		Query struct {
			Bool map[string][]map[string]interface{} `json:"bool"`
		} `json:"query"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.NotContains(t, decoded.Query.Bool, "must")
	assert.NotContains(t, decoded.Query.Bool, "should")
	filters := decoded.Query.Bool["filter"]
	require.Len(t, filters, 3)
	assert.Contains(t, filters[0], "multi_match")
	assert.Contains(t, filters[1], "match")
	assert.Contains(t, string(raw), `"gt":"2026-03-08T09:00:00Z"`)
}

func TestBuildMatchQuery_NeverSent(t *testing.T) {
	q := BuildMatchQuery(models.JobAlert{Keywords: "golang"}, nil)
	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "posted_at\":{\"gt")
}

func TestESSearcher_Search(t *testing.T) {
	var gotPath, gotBody string
	client := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		_, _ = w.Write([]byte(searchHits))
	})

	matches, total, err := NewESSearcher(client, "jobs").Search(context.Background(),
		models.JobAlert{Keywords: "golang"}, nil, 5)
	require.NoError(t, err)

	assert.Equal(t, "/jobs/_search", gotPath)
	assert.Contains(t, gotBody, `"filter"`)
	assert.Equal(t, int64(14), total)
	require.Len(t, matches, 2)
	assert.Equal(t, "job-1", matches[0].ID)
	assert.Equal(t, "Acme Corp", matches[0].CompanyName)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), matches[0].PostedAt)
}

func TestESSearcher_ErrorResponse(t *testing.T) {
	client := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	_, _, err := NewESSearcher(client, "").Search(context.Background(), models.JobAlert{Keywords: "x"}, nil, 5)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSearchQueryFailed, errors.AsStandard(err).Code)
}
