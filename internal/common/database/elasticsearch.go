// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"
	"net/http"

	"jobboard-workers/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchClient is the search side of the job alerts.
type ElasticsearchClient struct {
	Client    *elasticsearch.Client
	jobsIndex string
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addrs := cfg.Addresses
	if len(addrs) == 0 {
		if url := cfg.GetURL(); url != "" {
			addrs = []string{url}
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("elasticsearch has no address configured")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		// Alert runs are periodic; a failed search waits for the next tick.
		MaxRetries: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client for %v: %w", addrs, err)
	}
	return &ElasticsearchClient{Client: es, jobsIndex: cfg.JobsIndex}, nil
}

// Ping checks the cluster and, when one is configured, that the jobs index
// the alert searcher queries exists.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch unreachable: %w", err)
	}
	res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}

	if c.jobsIndex == "" {
		return nil
	}
	res, err = c.Client.Indices.Exists([]string{c.jobsIndex}, c.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch index check: %w", err)
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("elasticsearch index %q does not exist", c.jobsIndex)
	default:
		return fmt.Errorf("elasticsearch index check: %s", res.Status())
	}
}
