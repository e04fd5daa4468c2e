// Package ollama is a minimal HTTP client for a local Ollama server,
// covering the generate, tags and pull endpoints the agent relies on.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Naman6019/News-Agent/internal/config"
)

// Client talks to one Ollama instance and one configured model.
type Client struct {
	httpClient  *http.Client
	pullClient  *http.Client
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// NewClient builds a client from the loaded configuration. Model pulls get a
// dedicated HTTP client because downloads run far past the generate timeout.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.OllamaTimeout,
		},
		pullClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		baseURL:     strings.TrimSuffix(cfg.OllamaBaseURL, "/"),
		model:       cfg.OllamaModel,
		maxTokens:   cfg.OllamaMaxTokens,
		temperature: cfg.OllamaTemperature,
		logger:      logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// BaseURL returns the server address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Healthy checks whether the server answers its tags endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reaching server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// WaitUntilReady polls the health endpoint until the server answers or the
// retry budget runs out.
func (c *Client) WaitUntilReady(ctx context.Context, maxRetries int, interval time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = c.Healthy(ctx)
		if lastErr == nil {
			c.logger.Info("inference server ready", "attempt", attempt)
			return nil
		}
		c.logger.Debug("inference server not ready yet", "attempt", attempt, "max_retries", maxRetries, "error", lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("server not ready after %d attempts: %w", maxRetries, lastErr)
}

// ListModels returns the names of all models the server has available.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, model := range tags.Models {
		names = append(names, model.Name)
	}
	return names, nil
}

// HasModel reports whether the named model is already present on the server.
// Names are compared case-insensitively and a :latest suffix is ignored, so
// "mistral" matches a served "Mistral:latest".
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, model := range models {
		if normalizeModelName(model) == normalizeModelName(name) {
			return true, nil
		}
	}
	return false, nil
}

func normalizeModelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ":latest")
}

// Generate runs one blocking completion against the configured model and
// returns the trimmed response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload := generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(raw))
	}

	var generated generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	text := strings.TrimSpace(generated.Response)
	if text == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return text, nil
}

// Warmup issues a tiny completion so the model is loaded into memory before
// the first real summary request.
func (c *Client) Warmup(ctx context.Context) error {
	_, err := c.Generate(ctx, "Hello")
	if err != nil {
		return fmt.Errorf("warming up model: %w", err)
	}
	c.logger.Info("model warmed up", "model", c.model)
	return nil
}
