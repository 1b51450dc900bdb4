// Package predictor calls the external flood-prediction service that scores
// every ward from the current rainfall picture. The service runs on a
// free-tier host that sleeps when idle, so callers can probe /health to wake
// it before retrying a failed prediction.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/monsoonwatch/flood-risk-service/internal/observability"
)

// ErrDisabled is returned when the predictor integration is switched off.
var ErrDisabled = errors.New("predictor: integration disabled")

// RainfallInput is the rainfall picture sent with a prediction request.
type RainfallInput struct {
	Rain1h         float64 `json:"rain_1h"`
	Rain3h         float64 `json:"rain_3h"`
	Rain6h         float64 `json:"rain_6h"`
	Rain24h        float64 `json:"rain_24h"`
	RainForecast3h float64 `json:"rain_forecast_3h"`
}

// WardPrediction is one ward's entry in a PredictAll response.
type WardPrediction struct {
	WardID      string   `json:"ward_id"`
	Probability float64  `json:"probability"`
	RiskLevel   string   `json:"risk_level"`
	Rain1h      float64  `json:"rain_1h"`
	Rain3h      float64  `json:"rain_3h"`
	Explanation string   `json:"explanation"`
	MPIScore    *float64 `json:"mpi_score,omitempty"`
}

// PredictionSet is the full response to a PredictAll call.
type PredictionSet struct {
	Wards     []WardPrediction `json:"wards"`
	Timestamp time.Time        `json:"timestamp"`
}

// WardDetail carries the per-ward static and historical model features.
type WardDetail struct {
	StaticFeatures     map[string]float64 `json:"static_features"`
	HistoricalFeatures map[string]float64 `json:"historical_features"`
}

// Client talks to the prediction service.
type Client struct {
	baseURL    string
	enabled    bool
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger

	batchSize   int
	concurrency int
}

// NewClient creates a prediction service client. batchSize and concurrency
// bound the per-ward detail fan-out.
func NewClient(baseURL string, enabled bool, timeout time.Duration, batchSize, concurrency int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		enabled:     enabled,
		httpClient:  &http.Client{Timeout: timeout},
		metrics:     metrics,
		logger:      logger,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// PredictAll requests risk predictions for every ward. When the first
// attempt fails it pings /health to wake a sleeping service, then retries
// once before giving up.
func (c *Client) PredictAll(ctx context.Context, rainfall RainfallInput) (PredictionSet, error) {
	if !c.enabled {
		return PredictionSet{}, ErrDisabled
	}

	set, err := c.predictAll(ctx, rainfall)
	if err == nil {
		return set, nil
	}

	c.logger.Info("prediction failed, waking service before retry", "error", err)
	if wakeErr := c.Health(ctx); wakeErr != nil {
		return PredictionSet{}, fmt.Errorf("predict all: %w", err)
	}

	set, retryErr := c.predictAll(ctx, rainfall)
	if retryErr != nil {
		return PredictionSet{}, fmt.Errorf("predict all after wake: %w", retryErr)
	}
	return set, nil
}

func (c *Client) predictAll(ctx context.Context, rainfall RainfallInput) (PredictionSet, error) {
	payload := struct {
		Rainfall RainfallInput `json:"rainfall"`
	}{Rainfall: rainfall}

	body, err := json.Marshal(payload)
	if err != nil {
		return PredictionSet{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict/all", bytes.NewReader(body))
	if err != nil {
		return PredictionSet{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var set PredictionSet
	if err := c.do(req, "predict", &set); err != nil {
		return PredictionSet{}, err
	}
	if len(set.Wards) == 0 {
		return PredictionSet{}, errors.New("prediction response has no wards")
	}
	return set, nil
}

// WardDetails fetches static and historical features for the given ward IDs
// in fixed-size batches with bounded concurrency. Individual failures are
// logged and skipped; the result holds only the wards that succeeded.
func (c *Client) WardDetails(ctx context.Context, wardIDs []string) map[string]WardDetail {
	details := make(map[string]WardDetail, len(wardIDs))
	if !c.enabled || len(wardIDs) == 0 {
		return details
	}

	var mu sync.Mutex
	for start := 0; start < len(wardIDs); start += c.batchSize {
		end := min(start+c.batchSize, len(wardIDs))
		batch := wardIDs[start:end]

		sem := make(chan struct{}, c.concurrency)
		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Add(1)
			sem <- struct{}{}
			go func(id string) {
				defer wg.Done()
				defer func() { <-sem }()

				detail, err := c.wardDetail(ctx, id)
				if err != nil {
					c.logger.Debug("ward detail fetch failed", "ward_id", id, "error", err)
					return
				}
				mu.Lock()
				details[id] = detail
				mu.Unlock()
			}(id)
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
	}
	return details
}

func (c *Client) wardDetail(ctx context.Context, id string) (WardDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/wards/"+id, nil)
	if err != nil {
		return WardDetail{}, fmt.Errorf("create request: %w", err)
	}

	var detail WardDetail
	if err := c.do(req, "detail", &detail); err != nil {
		return WardDetail{}, err
	}
	return detail, nil
}

// Health probes the service's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	if !c.enabled {
		return ErrDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, "health", nil)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.PredictorCalls.WithLabelValues(endpoint, "error").Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.PredictorCalls.WithLabelValues(endpoint, "error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("predictor API error: status %d: %s", resp.StatusCode, body)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.metrics.PredictorCalls.WithLabelValues(endpoint, "error").Inc()
			return fmt.Errorf("decode response: %w", err)
		}
	}
	c.metrics.PredictorCalls.WithLabelValues(endpoint, "success").Inc()
	return nil
}
