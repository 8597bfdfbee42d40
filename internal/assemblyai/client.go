// Package assemblyai is a minimal client for the AssemblyAI v2 transcript API:
// submit, point lookup, and paginated listing. Results arrive asynchronously
// via the webhook registered at submission time.
package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrTranscriptNotFound means the provider has no record of the transcript id
// (deleted or expired upstream).
var ErrTranscriptNotFound = errors.New("transcript not found")

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assemblyai API error (status %d): %s", e.StatusCode, e.Message)
}

// Transient reports whether the error is worth retrying (5xx or rate limit).
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client calls the AssemblyAI REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates an AssemblyAI client. baseURL is normally
// "https://api.assemblyai.com"; override it for tests or proxies.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Submit creates a transcript job from a fetchable audio URL. The provider
// downloads the audio itself; the service only waits for the submission
// acknowledgement, never for the transcription.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Transcript, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}

	var t Transcript
	if err := c.do(ctx, http.MethodPost, "/v2/transcript", bytes.NewReader(body), &t); err != nil {
		return nil, err
	}
	if t.ID == "" {
		return nil, fmt.Errorf("submit response missing transcript id")
	}
	return &t, nil
}

// Get fetches the full transcript by id, including utterances once completed.
func (c *Client) Get(ctx context.Context, id string) (*Transcript, error) {
	var t Transcript
	if err := c.do(ctx, http.MethodGet, "/v2/transcript/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns one page of transcripts, newest first. Pass the last id of the
// previous page as beforeID to continue; empty beforeID starts at the newest.
func (c *Client) List(ctx context.Context, beforeID string, limit int) (*TranscriptPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if beforeID != "" {
		q.Set("before_id", beforeID)
	}
	path := "/v2/transcript"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page TranscriptPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("assemblyai request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrTranscriptNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: apiMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiMessage pulls the error field out of an error response body, falling
// back to the raw body.
func apiMessage(data []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return string(data)
}
