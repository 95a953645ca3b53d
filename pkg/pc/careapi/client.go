package careapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnexpectedStatus is returned when the service answers with anything but 200.
var ErrUnexpectedStatus = errors.New("unexpected status from patient service")

// Submission is the wire body of a create call.
type Submission struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Months  string `json:"months"`
}

type Client struct {
	createURL  string
	httpClient *http.Client
}

func NewClient(createURL string, timeout time.Duration) *Client {
	return &Client{
		createURL: createURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Create posts the submission and returns the response status code.
// A non-200 status yields ErrUnexpectedStatus alongside the code.
func (c *Client) Create(ctx context.Context, sub Submission) (int, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return 0, fmt.Errorf("cannot marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.createURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("cannot create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("cannot call patient service: %w", err)
	}
	defer resp.Body.Close()

	// Only the status is consumed; drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	return resp.StatusCode, nil
}

func (c *Client) URL() string {
	return c.createURL
}
