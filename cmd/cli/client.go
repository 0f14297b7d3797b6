package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/arbmuseum/arb/backend/internal/telemetry"
)

var httpClient = telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{Timeout: 15 * time.Second})

// apiError mirrors the server's error body
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// call sends a request and decodes a 2xx JSON body into out. The raw body is
// returned so --output=json can print it unchanged.
func call(ctx context.Context, method, path string, query url.Values, payload, out interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	target := apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e apiError
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			if e.Details != "" {
				return raw, fmt.Errorf("API error (%d): %s (%s)", resp.StatusCode, e.Message, e.Details)
			}
			return raw, fmt.Errorf("API error (%d): %s", resp.StatusCode, e.Message)
		}
		return raw, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return raw, nil
}

// printJSON prints raw when --output=json and reports whether it did
func printJSON(raw []byte) bool {
	if output != "json" {
		return false
	}
	fmt.Println(string(raw))
	return true
}
