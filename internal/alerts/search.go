package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"jobboard-workers/internal/common/errors"
	"jobboard-workers/internal/models"
)

// JobSearcher finds jobs matching an alert posted after since.
type JobSearcher interface {
	Search(ctx context.Context, alert models.JobAlert, since *time.Time, size int) ([]models.JobMatch, int64, error)
}

type ESSearcher struct {
	client *elasticsearch.Client
	index  string
}

func NewESSearcher(client *elasticsearch.Client, index string) *ESSearcher {
	if index == "" {
		index = "jobs"
	}
	return &ESSearcher{client: client, index: index}
}

// BuildMatchQuery returns a filter-only bool query; matches are not scored.
func BuildMatchQuery(alert models.JobAlert, since *time.Time) map[string]interface{} {
	filters := []interface{}{}

	if alert.Keywords != "" {
		filters = append(filters, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":    alert.Keywords,
				"fields":   []string{"title", "description", "company_name"},
				"operator": "and",
			},
		})
	}
	if alert.Location != "" {
		filters = append(filters, map[string]interface{}{
			"match": map[string]interface{}{
				"location": map[string]interface{}{
					"query":    alert.Location,
					"operator": "and",
				},
			},
		})
	}
	if since != nil {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{
				"posted_at": map[string]interface{}{
					"gt": since.UTC().Format(time.RFC3339),
				},
			},
		})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": filters,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"posted_at": map[string]interface{}{"order": "desc"}},
		},
		"track_total_hits": true,
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string `json:"_id"`
			Source struct {
				Title       string    `json:"title"`
				CompanyName string    `json:"company_name"`
				Location    string    `json:"location"`
				PostedAt    time.Time `json:"posted_at"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s *ESSearcher) Search(ctx context.Context, alert models.JobAlert, since *time.Time, size int) ([]models.JobMatch, int64, error) {
	body, err := json.Marshal(BuildMatchQuery(alert, since))
	if err != nil {
		return nil, 0, errors.NewSearchQueryFailedError(s.index, err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, 0, errors.NewSearchTimeoutError(s.index)
		}
		return nil, 0, errors.NewSearchQueryFailedError(s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, errors.NewSearchQueryFailedError(s.index, fmt.Errorf("search failed: %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, errors.NewSearchQueryFailedError(s.index, fmt.Errorf("decode response: %w", err))
	}

	matches := make([]models.JobMatch, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		matches = append(matches, models.JobMatch{
			ID:          h.ID,
			Title:       h.Source.Title,
			CompanyName: h.Source.CompanyName,
			Location:    h.Source.Location,
			PostedAt:    h.Source.PostedAt,
		})
	}
	return matches, parsed.Hits.Total.Value, nil
}
