package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"thsrbook/internal/logger"
)

// HTTP posts the base64 image to a classification server (a ddddocr-style
// endpoint) and reads the answer as plain text.
type HTTP struct {
	url      string
	client   *http.Client
	attempts int
	delay    time.Duration
}

func NewHTTP(url string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{url: url, client: &http.Client{Timeout: timeout}, attempts: 3, delay: 300 * time.Millisecond}
}

// Classify retries network failures a few times; server errors are returned at once.
func (h *HTTP) Classify(ctx context.Context, image []byte) (string, error) {
	var (
		text string
		err  error
	)
	for i := 1; i <= h.attempts; i++ {
		text, err = h.classify(ctx, image)
		if err == nil || !isNetworkError(err) || ctx.Err() != nil {
			return text, err
		}
		logger.Debug("ocr request failed (attempt %d/%d): %v", i, h.attempts, err)
		if i < h.attempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(h.delay * time.Duration(i)):
			}
		}
	}
	return "", err
}

func (h *HTTP) classify(ctx context.Context, image []byte) (string, error) {
	body := base64.StdEncoding.EncodeToString(image)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewBufferString(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return strings.TrimSpace(string(data)), nil
}

// isNetworkError reports transport failures worth another try.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"Client.Timeout", "timeout", "connection reset", "connection refused",
		"EOF", "broken pipe", "network is unreachable", "no route to host",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
