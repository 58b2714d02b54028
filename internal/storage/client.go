// Package storage uploads rendered videos to the hosted object store and
// prunes stale ones. The API follows the Supabase storage REST surface:
// objects live in a bucket and are publicly served once uploaded.
package storage

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

// DefaultBucket holds rendered explanation videos.
const DefaultBucket = "videos"

// Object is one stored file.
type Object struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Client is the object-store surface the video pipeline needs.
type Client interface {
	// Upload stores content under name and returns its public URL.
	// Existing objects with the same name are overwritten.
	Upload(ctx context.Context, name string, content []byte, contentType string) (string, error)

	// List returns every object in the bucket.
	List(ctx context.Context) ([]Object, error)

	// Remove deletes the named objects.
	Remove(ctx context.Context, names []string) error

	// PublicURL returns the public URL for an object name.
	PublicURL(name string) string
}

// Config holds connection settings for the object store.
type Config struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
	Timeout    time.Duration
}

// ConfigFromEnv reads DIVITUTOR_STORAGE_* settings.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:    strings.TrimSpace(os.Getenv("DIVITUTOR_STORAGE_URL")),
		ServiceKey: strings.TrimSpace(os.Getenv("DIVITUTOR_STORAGE_SERVICE_KEY")),
		Bucket:     strings.TrimSpace(os.Getenv("DIVITUTOR_STORAGE_BUCKET")),
	}
}

// New creates a storage client.
func New(log *logger.Logger, cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing DIVITUTOR_STORAGE_URL")
	}
	if strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, fmt.Errorf("missing DIVITUTOR_STORAGE_SERVICE_KEY")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &client{
		log:        log.With("client", "storage"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func (c *client) Upload(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.cfg.BaseURL, c.cfg.Bucket, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload %s: status %d: %s", name, resp.StatusCode, truncate(string(raw), 300))
	}

	c.log.Debug("object uploaded", "name", name, "bytes", len(content))
	return c.PublicURL(name), nil
}

func (c *client) List(ctx context.Context) ([]Object, error) {
	url := fmt.Sprintf("%s/storage/v1/object/list/%s", c.cfg.BaseURL, c.cfg.Bucket)

	body, err := json.Marshal(map[string]any{"prefix": "", "limit": 1000})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list bucket: status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var objects []Object
	if err := json.Unmarshal(raw, &objects); err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}
	return objects, nil
}

func (c *client) Remove(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	url := fmt.Sprintf("%s/storage/v1/object/%s", c.cfg.BaseURL, c.cfg.Bucket)

	body, err := json.Marshal(map[string]any{"prefixes": names})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remove objects: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remove objects: status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	return nil
}

func (c *client) PublicURL(name string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.cfg.BaseURL, c.cfg.Bucket, name)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
