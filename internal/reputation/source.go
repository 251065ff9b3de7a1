package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ReviewSource ищет отзывы о поставщике и размечает их эмоции
type ReviewSource interface {
	Reviews(ctx context.Context, query string, limit int) ([]RawReview, error)
}

// HTTPSource клиент сервиса сбора отзывов: GET {base}/reviews?q=...&limit=N
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type reviewsResponse struct {
	Reviews []RawReview `json:"reviews"`
}

func (s *HTTPSource) Reviews(ctx context.Context, query string, limit int) ([]RawReview, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/reviews?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build reviews request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reviews: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch reviews: unexpected status %d", resp.StatusCode)
	}

	var body reviewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	if len(body.Reviews) > limit {
		body.Reviews = body.Reviews[:limit]
	}
	return body.Reviews, nil
}
