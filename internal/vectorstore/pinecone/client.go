package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docqa/internal/errs"
	"docqa/internal/logger"
)

type Config struct {
	APIKey       string
	APIVersion   string
	BaseURL      string
	Cloud        string
	Region       string
	Timeout      time.Duration
	ReadyTimeout time.Duration
	PollInterval time.Duration
}

// Client speaks the Pinecone control plane (index lifecycle) and data plane
// (per-index host) REST APIs.
type Client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, errs.Errorf(errs.Configuration, "pinecone.NewClient", "logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errs.Errorf(errs.Configuration, "pinecone.NewClient", "missing Pinecone API key")
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = "2025-04"
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.pinecone.io"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Client{
		log:  log.With("client", "PineconeClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pinecone %s http %d: %s", e.Op, e.StatusCode, e.Body)
}

func hasStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// -------------------- Control plane --------------------

type IndexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type ServerlessSpec struct {
	Cloud  string `json:"cloud"`
	Region string `json:"region"`
}

type CreateIndexRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Spec      struct {
		Serverless ServerlessSpec `json:"serverless"`
	} `json:"spec"`
}

func (c *Client) DescribeIndex(ctx context.Context, name string) (*IndexDescription, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("index name required")
	}
	return doJSON[IndexDescription](c, ctx, "describe_index", http.MethodGet, c.controlURL("/indexes/"+name), nil)
}

// CreateIndex creates a serverless index. A 409 (already exists) is not an error.
func (c *Client) CreateIndex(ctx context.Context, name string, dimension int, metric string) error {
	req := CreateIndexRequest{Name: name, Dimension: dimension, Metric: metric}
	req.Spec.Serverless = ServerlessSpec{Cloud: c.cfg.Cloud, Region: c.cfg.Region}
	_, err := doJSON[json.RawMessage](c, ctx, "create_index", http.MethodPost, c.controlURL("/indexes"), req)
	if hasStatus(err, http.StatusConflict) {
		c.log.Info("index already exists", "index", name)
		return nil
	}
	return err
}

// DeleteIndex deletes an index. A 404 is not an error.
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	_, err := doJSON[json.RawMessage](c, ctx, "delete_index", http.MethodDelete, c.controlURL("/indexes/"+name), nil)
	if hasStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// WaitReady polls until the index reports ready or the ready timeout elapses.
func (c *Client) WaitReady(ctx context.Context, name string) (*IndexDescription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()
	for {
		desc, err := c.DescribeIndex(ctx, name)
		if err != nil && !hasStatus(err, http.StatusNotFound) {
			return nil, err
		}
		if err == nil && desc.Status.Ready && strings.TrimSpace(desc.Host) != "" {
			return desc, nil
		}
		if err := sleep(ctx, c.cfg.PollInterval); err != nil {
			return nil, fmt.Errorf("index %q not ready: %w", name, err)
		}
	}
}

// WaitGone polls until describe returns 404.
func (c *Client) WaitGone(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()
	for {
		_, err := c.DescribeIndex(ctx, name)
		if hasStatus(err, http.StatusNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sleep(ctx, c.cfg.PollInterval); err != nil {
			return fmt.Errorf("index %q still present: %w", name, err)
		}
	}
}

// -------------------- Data plane --------------------

type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type UpsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace,omitempty"`
}

type UpsertResponse struct {
	UpsertedCount int64 `json:"upsertedCount"`
}

func (c *Client) UpsertVectors(ctx context.Context, host string, req UpsertRequest) (*UpsertResponse, error) {
	if len(req.Vectors) == 0 {
		return &UpsertResponse{UpsertedCount: 0}, nil
	}
	return doJSON[UpsertResponse](c, ctx, "upsert", http.MethodPost, dataURL(host, "/vectors/upsert"), req)
}

type QueryRequest struct {
	Namespace       string    `json:"namespace,omitempty"`
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeValues   bool      `json:"includeValues"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type QueryMatch struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type QueryResponse struct {
	Matches   []QueryMatch `json:"matches"`
	Namespace string       `json:"namespace"`
}

func (c *Client) Query(ctx context.Context, host string, req QueryRequest) (*QueryResponse, error) {
	if len(req.Vector) == 0 {
		return nil, fmt.Errorf("query vector required")
	}
	return doJSON[QueryResponse](c, ctx, "query", http.MethodPost, dataURL(host, "/query"), req)
}

type NamespaceSummary struct {
	VectorCount int `json:"vectorCount"`
}

type IndexStats struct {
	Namespaces       map[string]NamespaceSummary `json:"namespaces"`
	Dimension        int                         `json:"dimension"`
	TotalVectorCount int                         `json:"totalVectorCount"`
}

func (c *Client) DescribeIndexStats(ctx context.Context, host string) (*IndexStats, error) {
	return doJSON[IndexStats](c, ctx, "describe_index_stats", http.MethodPost, dataURL(host, "/describe_index_stats"), map[string]any{})
}

type DeleteRequest struct {
	DeleteAll bool   `json:"deleteAll"`
	Namespace string `json:"namespace"`
}

// DeleteNamespace removes every vector in a namespace. Unknown namespaces are not an error.
func (c *Client) DeleteNamespace(ctx context.Context, host, namespace string) error {
	_, err := doJSON[json.RawMessage](c, ctx, "delete", http.MethodPost, dataURL(host, "/vectors/delete"), DeleteRequest{DeleteAll: true, Namespace: namespace})
	if hasStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// -------------------- helpers --------------------

func (c *Client) controlURL(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// dataURL accepts either a bare host as returned by describe_index or a full URL.
func dataURL(host, path string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return host + path
}

func doJSON[T any](c *Client, ctx context.Context, op, method, url string, body any) (*T, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", c.cfg.APIKey)
	req.Header.Set("X-Pinecone-Api-Version", c.cfg.APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out T
	if len(bytes.TrimSpace(raw)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pinecone %s decode: %w", op, err)
	}
	return &out, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
