package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	v1Http "github.com/DRSN-tech/visual-search/internal/delivery/v1/http"
)

// Client обращается к HTTP API сервиса визуального поиска.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{baseURL: baseURL, http: client}
}

// APIError ответ сервиса с кодом не 2xx.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server responded %d: %s", e.Status, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (c *Client) Stats(ctx context.Context) (*v1Http.StatsResponse, error) {
	var res v1Http.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Search(ctx context.Context, req *v1Http.SearchRequest) (*v1Http.SearchResponse, error) {
	var res v1Http.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/search", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Index(ctx context.Context, req *v1Http.IndexRequest) (*v1Http.IndexResponse, error) {
	var res v1Http.IndexResponse
	if err := c.do(ctx, http.MethodPost, "/index", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Delete(ctx context.Context, productID int64) (*v1Http.DeleteResponse, error) {
	var res v1Http.DeleteResponse
	path := "/index/" + strconv.FormatInt(productID, 10)
	if err := c.do(ctx, http.MethodDelete, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) BatchIndex(ctx context.Context, req *v1Http.BatchIndexRequest) (*v1Http.BatchIndexResponse, error) {
	var res v1Http.BatchIndexResponse
	if err := c.do(ctx, http.MethodPost, "/batch-index", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Reconcile(ctx context.Context) (*v1Http.ReconcileResponse, error) {
	var res v1Http.ReconcileResponse
	if err := c.do(ctx, http.MethodPost, "/reconcile", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var er v1Http.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
			apiErr.Details = er.Details
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
