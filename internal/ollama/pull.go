package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type pullRequest struct {
	Name   string `json:"name"`
	Stream bool   `json:"stream"`
}

type pullProgress struct {
	Status    string `json:"status"`
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
	Error     string `json:"error"`
}

// Pull downloads a model, consuming the server's streamed progress lines.
func (c *Client) Pull(ctx context.Context, name string) error {
	body, err := json.Marshal(pullRequest{Name: name, Stream: true})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.pullClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling pull: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lastStatus := ""
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var progress pullProgress
		if err := json.Unmarshal(line, &progress); err != nil {
			c.logger.Debug("skipping unparseable progress line", "error", err)
			continue
		}
		if progress.Error != "" {
			return fmt.Errorf("pull failed: %s", progress.Error)
		}
		if progress.Status != lastStatus {
			lastStatus = progress.Status
			if progress.Total > 0 {
				c.logger.Info("pulling model", "model", name, "status", progress.Status,
					"percent", progress.Completed*100/progress.Total)
			} else {
				c.logger.Info("pulling model", "model", name, "status", progress.Status)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading pull stream: %w", err)
	}

	c.logger.Info("model pull finished", "model", name)
	return nil
}

// EnsureModel verifies the configured model is present, pulling it when
// missing. A model still absent after a successful pull is an error.
func (c *Client) EnsureModel(ctx context.Context) error {
	present, err := c.HasModel(ctx, c.model)
	if err != nil {
		return fmt.Errorf("checking model availability: %w", err)
	}
	if present {
		c.logger.Info("model available", "model", c.model)
		return nil
	}

	c.logger.Info("model missing, starting pull", "model", c.model)
	if err := c.Pull(ctx, c.model); err != nil {
		return err
	}

	present, err = c.HasModel(ctx, c.model)
	if err != nil {
		return fmt.Errorf("verifying model after pull: %w", err)
	}
	if !present {
		return fmt.Errorf("model %s still missing after pull", c.model)
	}
	return nil
}
