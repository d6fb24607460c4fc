package search

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"

	"github.com/italosilva18/cte-mdfe-api-sub000/config"
)

// DocumentSummary is the normalized-document projection indexed for the
// reporting collaborators
type DocumentSummary struct {
	AccessKey     string    `json:"access_key"`
	Family        string    `json:"family"`
	SchemaVersion string    `json:"schema_version"`
	Processed     bool      `json:"processed"`
	Canceled      bool      `json:"canceled"`
	Modality      string    `json:"modality,omitempty"`
	Closed        bool      `json:"closed"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// Client indexes document summaries
type Client interface {
	IndexDocument(ctx context.Context, summary *DocumentSummary) error
}

// elasticClient implements Client against Elasticsearch
type elasticClient struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticsearchConfig) (Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.URLs,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}
	return &elasticClient{client: client, index: cfg.Index}, nil
}

// IndexDocument indexes one document summary, keyed by access key so
// re-ingestion overwrites in place
func (c *elasticClient) IndexDocument(ctx context.Context, summary *DocumentSummary) error {
	docJSON, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "failed to marshal document summary")
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: summary.AccessKey,
		Body:       bytes.NewReader(docJSON),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}
	return nil
}
