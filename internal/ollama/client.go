package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ahmadnazif/AiChatBackendDemo/internal/config"
)

// statusTimeout bounds the auxiliary status calls so a dead runtime cannot
// stall the caller.
const statusTimeout = 3 * time.Second

// Client talks to a local ollama runtime over its native HTTP API. The chat
// path goes through the model service; this client covers embeddings and
// runtime inspection.
type Client struct {
	endpoint       string
	embeddingModel string
	httpClient     *http.Client
}

func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		endpoint:       cfg.Endpoint,
		embeddingModel: cfg.EmbeddingModel,
		httpClient:     &http.Client{},
	}
}

// EmbeddingModel returns the configured embedding model name.
func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed computes the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.embeddingModel, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding api status %d: %s", resp.StatusCode, data)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embedding api returned empty vector for model %s", c.embeddingModel)
	}
	return out.Embedding, nil
}

// ModelInfo is one installed or running model as reported by the runtime.
type ModelInfo struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

type modelListResponse struct {
	Models []ModelInfo `json:"models"`
}

func (c *Client) listModels(ctx context.Context, path string) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s status %d", path, resp.StatusCode)
	}

	var out modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return out.Models, nil
}

// ListInstalledModels returns the models present on the runtime.
func (c *Client) ListInstalledModels(ctx context.Context) ([]ModelInfo, error) {
	return c.listModels(ctx, "/api/tags")
}

// ListRunningModels returns the models currently loaded in memory.
func (c *Client) ListRunningModels(ctx context.Context) ([]ModelInfo, error) {
	return c.listModels(ctx, "/api/ps")
}

// IsRunning reports whether the runtime answers at all.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	return resp.StatusCode == http.StatusOK
}
