package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client triggers the external generation worker. The worker is opaque:
// it is only ever asked to run a step, and it eventually writes the
// resulting step row back through the webhook. Nothing here waits for
// that to happen.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type JobRequest struct {
	ProjectID   string   `json:"project_id"`
	StepNumber  int      `json:"step_number"`
	SeedPrompt  string   `json:"seed_prompt,omitempty"`
	UserInput   string   `json:"user_input,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
	CallbackURL string   `json:"callback_url,omitempty"`
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TriggerStep asks the worker to produce the next step for a project.
func (c *Client) TriggerStep(job JobRequest) error {
	url := strings.TrimSuffix(c.baseURL, "/") + "/jobs"

	jsonData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("worker returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// RetryWithBackoff executes a function with exponential backoff retry logic
func (c *Client) RetryWithBackoff(fn func() error, maxRetries int) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(backoffs) {
			time.Sleep(backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
