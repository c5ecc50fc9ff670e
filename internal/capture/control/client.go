package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/johnquangdev/meetscribe/internal/capture"
)

// Client sends control commands to a capture agent
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the agent at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Start asks the agent to capture the focused tab into endpoint
func (c *Client) Start(ctx context.Context, endpoint string) (capture.Reply, error) {
	return c.send(ctx, capture.ControlRequest{Cmd: capture.CmdStart, Endpoint: endpoint})
}

// Stop asks the agent to end the capture session
func (c *Client) Stop(ctx context.Context) (capture.Reply, error) {
	return c.send(ctx, capture.ControlRequest{Cmd: capture.CmdStop})
}

// Status fetches the agent's coordinator and worker state
func (c *Client) Status(ctx context.Context) (capture.Status, error) {
	var status capture.Status

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return status, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return status, fmt.Errorf("capture agent unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("capture agent returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("failed to decode status: %w", err)
	}
	return status, nil
}

// send posts one command. Non-2xx responses still carry a reply body.
func (c *Client) send(ctx context.Context, cmd capture.ControlRequest) (capture.Reply, error) {
	var reply capture.Reply

	body, err := json.Marshal(cmd)
	if err != nil {
		return reply, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/control", bytes.NewReader(body))
	if err != nil {
		return reply, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return reply, fmt.Errorf("capture agent unreachable: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return reply, fmt.Errorf("failed to decode reply (status %d): %w", resp.StatusCode, err)
	}
	if !reply.OK && reply.Error == "" {
		reply.Error = fmt.Sprintf("capture agent returned status %d", resp.StatusCode)
	}
	return reply, nil
}
