package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/schema"
)

// HTTPConfig configures the remote extraction collaborator.
type HTTPConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// RateLimit is requests per second across all workers; 0 disables limiting.
	RateLimit float64
	Burst     int
}

// HTTPExtractor asks a remote extraction service for one (document, variant)
// result per request. The service answers with the payload shape replay files use.
type HTTPExtractor struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	schema  *schema.Schema
	logger  *slog.Logger
}

type extractRequest struct {
	Document string `json:"document"`
	Name     string `json:"name"`
	Variant  string `json:"variant"`
}

func NewHTTPExtractor(cfg HTTPConfig, logger *slog.Logger) *HTTPExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	limiter := rate.NewLimiter(rate.Inf, cfg.Burst)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	return &HTTPExtractor{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		schema:  schema.Payload(),
		logger:  logger,
	}
}

func (h *HTTPExtractor) Extract(ctx context.Context, documentPath, variant string) (Extraction, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return Extraction{}, fmt.Errorf("rate limit: %w", err)
	}

	headers := map[string]string{}
	if h.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + h.cfg.APIKey
	}
	if runID := common.RunIDFromContext(ctx); runID != "" {
		headers["X-Run-ID"] = runID
	}
	body := extractRequest{Document: documentPath, Name: filepath.Base(documentPath), Variant: variant}

	raw, status, err := sendJSON(ctx, h.client, h.cfg.URL, body, headers, h.logger)
	if err != nil {
		return Extraction{}, common.NewAppError("EXTRACT_HTTP", fmt.Sprintf("status %d", status), errors.Join(common.ErrExtraction, err))
	}

	ext, sanitized, err := decodePayload(h.schema, raw)
	if err != nil {
		return Extraction{}, errors.Join(common.ErrExtraction, err)
	}
	if len(sanitized) > 0 {
		h.logger.Warn("extract.http.sanitized", "document", body.Name, "variant", variant, "changed", sanitized)
	}
	return ext, nil
}

// sendJSON posts body as JSON and returns the raw response body and status code.
func sendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("extract.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("extract.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	logger.Debug("extract.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

var _ Extractor = (*HTTPExtractor)(nil)
