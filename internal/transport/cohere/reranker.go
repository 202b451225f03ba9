// Package cohere implements the rerank provider over the Cohere-compatible
// HTTP API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/inkstream/bookqa/internal/domain"
	"github.com/inkstream/bookqa/internal/metrics"
)

const rerankPath = "/v2/rerank"

// Reranker scores documents against a query via the /v2/rerank endpoint.
type Reranker struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	attempts   uint
	provider   string
	logger     *zap.Logger
}

// Config holds the rerank provider settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Attempts int
	Provider string
	Logger   *zap.Logger
}

// New creates a Cohere-compatible rerank client.
func New(cfg *Config) *Reranker {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}

	return &Reranker{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		attempts:   uint(attempts),
		provider:   cfg.Provider,
		logger:     cfg.Logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// statusError marks HTTP failures so RetryIf can skip client errors.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("rerank API error %d: %s", e.code, e.body)
}

// Rerank implements domain.Reranker. Transient failures are retried; 4xx
// responses fail immediately. Results come back in input order, one score per
// document.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string) ([]domain.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      len(documents),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", domain.ErrRerankProvider, err)
	}

	start := time.Now()

	var parsed rerankResponse
	err = retry.Do(
		func() error {
			return r.doRequest(ctx, body, &parsed)
		},
		retry.Attempts(r.attempts),
		retry.Context(ctx),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.code >= 500 || se.code == http.StatusTooManyRequests
			}
			return true
		}),
	)

	duration := time.Since(start)

	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(r.provider, r.model, "error").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrRerankProvider, err)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(r.provider, r.model, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(r.provider, r.model).Observe(duration.Seconds())

	results := make([]domain.RerankResult, len(documents))
	for i := range results {
		results[i] = domain.RerankResult{Index: i}
	}
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			return nil, fmt.Errorf("%w: result index %d out of range", domain.ErrRerankProvider, res.Index)
		}
		results[res.Index].Score = res.RelevanceScore
	}

	return results, nil
}

func (r *Reranker) doRequest(ctx context.Context, body []byte, out *rerankResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+rerankPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: string(data)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
