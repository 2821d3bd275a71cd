package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"stepchat-backend/internal/chat"
	"stepchat-backend/internal/models"
)

// Client is the UI-side client of the admission-gated pipeline API. It
// implements chat.Gate: every failure crossing back into the sync
// engine is an *chat.AdmissionError, with HTTP 402 mapped to the
// distinguished insufficient-credits reason so the UI can pick the
// right message.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Advance(ctx context.Context, projectID uuid.UUID, req models.AdvanceRequest) error {
	status, body, err := c.post(ctx, fmt.Sprintf("projects/%s/advance", projectID), req)
	return admissionResult(status, body, err)
}

func (c *Client) SelectOption(ctx context.Context, stepResultID uuid.UUID, optionIndex int) error {
	status, body, err := c.post(ctx, fmt.Sprintf("steps/%s/select", stepResultID),
		models.SelectOptionRequest{OptionIndex: optionIndex})
	return admissionResult(status, body, err)
}

func (c *Client) ApproveStep(ctx context.Context, stepResultID uuid.UUID) error {
	status, body, err := c.post(ctx, fmt.Sprintf("steps/%s/approve", stepResultID), nil)
	return admissionResult(status, body, err)
}

// RegenerateStep requests authoritative deletion of a step so the
// worker can re-create it. A 404 means the row was already gone, which
// is the requested end state, so it reports success.
func (c *Client) RegenerateStep(ctx context.Context, stepResultID uuid.UUID) error {
	status, body, err := c.post(ctx, fmt.Sprintf("steps/%s/regenerate", stepResultID), nil)
	if err == nil && status == http.StatusNotFound {
		return nil
	}
	return admissionResult(status, body, err)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	url := strings.TrimSuffix(c.baseURL, "/") + "/" + path

	var reqBody io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

func admissionResult(status int, body []byte, err error) error {
	if err != nil {
		return &chat.AdmissionError{Reason: chat.ReasonGeneric, Message: err.Error()}
	}
	if status < 300 {
		return nil
	}

	var errResp models.ErrorResponse
	json.Unmarshal(body, &errResp)
	message := errResp.Message
	if message == "" {
		message = errResp.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}

	if status == http.StatusPaymentRequired {
		return &chat.AdmissionError{Reason: chat.ReasonInsufficientCredits, Message: message}
	}
	return &chat.AdmissionError{Reason: chat.ReasonGeneric, Message: message}
}
