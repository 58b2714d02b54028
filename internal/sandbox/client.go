// Package sandbox talks to the remote code-execution service that
// renders animation scenes. Sandboxes are created from a prepared
// snapshot, driven over a shell exec endpoint, and always torn down
// after a run.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/divitutor/backend/internal/logger"
)

// DefaultSnapshot is the prepared image with the animation toolchain
// installed.
const DefaultSnapshot = "manim-voiceover-v4"

// Client drives remote sandboxes.
type Client interface {
	// Create provisions a sandbox from the configured snapshot and
	// returns its id.
	Create(ctx context.Context) (string, error)

	// Exec runs a shell command inside the sandbox and returns its
	// combined output.
	Exec(ctx context.Context, sandboxID, command string) (string, error)

	// Delete tears the sandbox down. Safe to call after a failed run.
	Delete(ctx context.Context, sandboxID string) error
}

// Config holds connection settings for the sandbox service.
type Config struct {
	APIKey   string
	BaseURL  string
	Snapshot string
	Timeout  time.Duration
}

// ConfigFromEnv reads DIVITUTOR_SANDBOX_* settings.
func ConfigFromEnv() Config {
	return Config{
		APIKey:   strings.TrimSpace(os.Getenv("DIVITUTOR_SANDBOX_API_KEY")),
		BaseURL:  strings.TrimSpace(os.Getenv("DIVITUTOR_SANDBOX_API_URL")),
		Snapshot: strings.TrimSpace(os.Getenv("DIVITUTOR_SANDBOX_SNAPSHOT")),
	}
}

// New creates a sandbox client.
func New(log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing DIVITUTOR_SANDBOX_API_KEY")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing DIVITUTOR_SANDBOX_API_URL")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Snapshot == "" {
		cfg.Snapshot = DefaultSnapshot
	}
	if cfg.Timeout <= 0 {
		// Renders routinely take minutes.
		cfg.Timeout = 5 * time.Minute
	}
	return &client{
		log:        log.With("client", "sandbox"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type createRequest struct {
	Snapshot string `json:"snapshot"`
}

type createResponse struct {
	ID string `json:"id"`
}

type execRequest struct {
	Command string `json:"command"`
}

type execResponse struct {
	ExitCode int    `json:"exit_code"`
	Result   string `json:"result"`
}

func (c *client) Create(ctx context.Context) (string, error) {
	var out createResponse
	err := c.do(ctx, http.MethodPost, "/sandbox", createRequest{Snapshot: c.cfg.Snapshot}, &out)
	if err != nil {
		return "", fmt.Errorf("create sandbox: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create sandbox: empty id in response")
	}
	c.log.Debug("sandbox created", "sandbox_id", out.ID, "snapshot", c.cfg.Snapshot)
	return out.ID, nil
}

func (c *client) Exec(ctx context.Context, sandboxID, command string) (string, error) {
	var out execResponse
	path := fmt.Sprintf("/sandbox/%s/process/exec", sandboxID)
	if err := c.do(ctx, http.MethodPost, path, execRequest{Command: command}, &out); err != nil {
		return "", fmt.Errorf("exec in sandbox %s: %w", sandboxID, err)
	}
	if out.ExitCode != 0 {
		return out.Result, fmt.Errorf("command exited %d: %s", out.ExitCode, truncate(out.Result, 500))
	}
	return out.Result, nil
}

func (c *client) Delete(ctx context.Context, sandboxID string) error {
	if err := c.do(ctx, http.MethodDelete, "/sandbox/"+sandboxID, nil, nil); err != nil {
		return fmt.Errorf("delete sandbox %s: %w", sandboxID, err)
	}
	return nil
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sandbox service returned %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
