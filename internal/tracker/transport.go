package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/studyloop/adaptive-backend/internal/logger"
)

// HTTPTransport posts batches to the backend tracking endpoint with the
// session owner's bearer token.
type HTTPTransport struct {
	baseURL string
	token   string
	client  *http.Client
	log     *logger.Logger
}

func NewHTTPTransport(baseURL, token string, log *logger.Logger) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With("transport", "HTTPTransport"),
	}
}

func (t *HTTPTransport) SendBatch(ctx context.Context, batch Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/behavior/track", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("track endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
