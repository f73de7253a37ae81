package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/engramdb/engram/internal/store"
)

// Ollama summarizes through a local Ollama instance. Any transport or
// decode failure surfaces as an error so the caller can degrade: compress
// keeps the original text, merge aborts.
type Ollama struct {
	url    string
	model  string
	client *http.Client
}

// NewOllama creates an Ollama-backed summarizer.
func NewOllama(url, model string, timeout time.Duration) *Ollama {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Ollama{
		url:    strings.TrimRight(url, "/"),
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

func (o *Ollama) Summarize(ctx context.Context, text string, target store.Tier) (string, error) {
	if target == store.TierFull {
		return text, nil
	}

	reqBody := map[string]any{
		"model":  o.model,
		"prompt": promptFor(text, target),
		"stream": false,
		"options": map[string]any{
			"temperature": 0.3,
			"num_predict": 100,
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama api status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	out := strings.TrimSpace(result.Response)
	if out == "" {
		return "", fmt.Errorf("ollama returned empty summary")
	}
	return out, nil
}
