package eyes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/AndreRH09/download_valet/internal/pathutil"
)

// Client represents a visual validation service client.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a new visual validation client. Requests carry the
// bearer token and go through an instrumented transport.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client.Timeout = timeout

	return &Client{
		client:  client,
		baseURL: baseURL,
	}
}

// Checkpoint is one delivered artifact submitted for visual validation.
type Checkpoint struct {
	Name      string `json:"name"`
	Batch     string `json:"batch"`
	Path      string `json:"path"`
	Extension string `json:"extension"`
}

// SubmitCheckpoint registers a delivered artifact with the validation
// service. The extension is derived from the path when not set.
func (c *Client) SubmitCheckpoint(ctx context.Context, checkpoint Checkpoint) error {
	if checkpoint.Extension == "" {
		checkpoint.Extension = pathutil.Ext(checkpoint.Path)
	}

	body, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/checkpoints", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("url: %s, status: %d", url, resp.StatusCode)
	}

	return nil
}
