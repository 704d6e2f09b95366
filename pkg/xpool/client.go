package xpool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/geeth24/xpool-agent/pkg/tasks"
)

const defaultTimeout = 120 * time.Second

// ChatMessage is the wire form of one history entry.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to the xPool backend: the streaming chat endpoint and the
// task-status endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// Streaming responses stay open for the whole assistant turn, so the
	// stream client carries no overall timeout; cancellation comes from the
	// request context.
	streamClient *http.Client
}

// NewClient creates a client with the default request timeout.
func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, defaultTimeout)
}

// NewClientWithTimeout creates a client with a custom timeout for
// non-streaming requests.
func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}
}

// StreamChat opens an assistant turn over the full message history and
// returns the raw frame stream. The caller owns the returned body and must
// close it.
func (c *Client) StreamChat(ctx context.Context, messages []ChatMessage) (io.ReadCloser, error) {
	payload := struct {
		Messages []ChatMessage `json:"messages"`
		Stream   bool          `json:"stream"`
	}{
		Messages: messages,
		Stream:   true,
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat/stream", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeErrorResponse(resp)
	}

	return resp.Body, nil
}

// TasksStatus fetches backend status for a batch of task ids. Implements
// tasks.StatusClient.
func (c *Client) TasksStatus(ctx context.Context, ids []string) (map[string]tasks.TaskStatus, error) {
	payload := struct {
		TaskIDs []string `json:"task_ids"`
	}{TaskIDs: ids}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat/tasks/status", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeErrorResponse(resp)
	}

	var statusResp struct {
		Tasks map[string]tasks.TaskStatus `json:"tasks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return statusResp.Tasks, nil
}

func decodeErrorResponse(resp *http.Response) error {
	errorBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("request failed with status %d (failed to read error response: %w)", resp.StatusCode, err)
	}

	var errorResp struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(errorBody, &errorResp) == nil {
		if errorResp.Detail != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errorResp.Detail)
		}
		if errorResp.Error != "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, errorResp.Error)
		}
	}

	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(errorBody))
}

// Verify interface compliance
var _ tasks.StatusClient = (*Client)(nil)
