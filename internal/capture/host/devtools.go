// Package host adapts the local machine to the capture interfaces: the
// browser's DevTools endpoint for tab lookup, an in-memory handle registry,
// ffmpeg for audio acquisition and a timeslice segmenter for encoding.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/johnquangdev/meetscribe/internal/capture"
)

// DevToolsResolver finds the focused tab through a Chromium remote debugging
// endpoint. /json/list orders targets by most recent activation.
type DevToolsResolver struct {
	baseURL string
	client  *http.Client
}

var _ capture.TabResolver = (*DevToolsResolver)(nil)

type devToolsTarget struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// NewDevToolsResolver creates a resolver for baseURL (e.g. http://127.0.0.1:9222)
func NewDevToolsResolver(baseURL string) *DevToolsResolver {
	return &DevToolsResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// ActiveTab returns the first page target, or nil when there is none
func (d *DevToolsResolver) ActiveTab(ctx context.Context) (*capture.Tab, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/json/list", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build devtools request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("devtools unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devtools returned status %d", resp.StatusCode)
	}

	var targets []devToolsTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("failed to decode devtools targets: %w", err)
	}

	for _, t := range targets {
		if t.Type == "page" {
			return &capture.Tab{ID: t.ID, URL: t.URL, Title: t.Title}, nil
		}
	}
	return nil, nil
}
