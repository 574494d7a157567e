package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	ProviderHTTP = "http"
	ProviderHash = "hash"

	// DefaultModel is the model requested from the HTTP backend.
	DefaultModel = "all-MiniLM-L6-v2"

	// HTTPDimension is the vector length of the default model.
	HTTPDimension = 384

	// HashDimension is the vector length of the offline fallback.
	HashDimension = 256

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// HTTPProvider implements Provider against an OpenAI-compatible
// embeddings endpoint.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	logger     *slog.Logger
}

// NewHTTPProvider creates an embedder backed by an OpenAI-compatible
// /v1/embeddings endpoint. The backend is not contacted here; use Probe
// to verify reachability.
func NewHTTPProvider(baseURL, apiKey, model string, dimension int, cache *Cache, logger *slog.Logger) *HTTPProvider {
	if model == "" {
		model = DefaultModel
	}
	if dimension <= 0 {
		dimension = HTTPDimension
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPProvider{
		baseURL:   baseURL,
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  cache,
		logger: logger,
	}
}

// Probe issues a minimal embedding request to verify the backend
// responds with vectors of the expected dimension.
func (p *HTTPProvider) Probe(ctx context.Context) error {
	vec, err := p.callAPI(ctx, "ping")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendTimeout, err)
	}
	if len(vec) != p.dimension {
		return fmt.Errorf("%w: backend returned %d, want %d", ErrBadDimension, len(vec), p.dimension)
	}
	return nil
}

// Embed returns the embedding for text. Empty input and backend failures
// both produce a zero vector of the provider's dimension.
func (p *HTTPProvider) Embed(ctx context.Context, text string) []float32 {
	if text == "" {
		return make([]float32, p.dimension)
	}

	hash := ComputeHash(text)
	if p.cache != nil {
		if vec, ok := p.cache.Get(hash); ok {
			return vec
		}
	}

	config := DefaultRetryConfig()
	vec, err := retryWithBackoff(ctx, config, func() ([]float32, error) {
		return p.callAPI(ctx, text)
	})
	if err != nil {
		p.logger.Warn("embedding backend failed, returning zero vector",
			"model", p.model, "error", err)
		return make([]float32, p.dimension)
	}
	if len(vec) != p.dimension {
		p.logger.Warn("embedding backend returned wrong dimension, returning zero vector",
			"got", len(vec), "want", p.dimension)
		return make([]float32, p.dimension)
	}

	if p.cache != nil {
		p.cache.Set(hash, vec)
	}
	return vec
}

func (p *HTTPProvider) callAPI(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"input": []string{text},
		"model": p.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrBackendFailed)
	}

	return apiResp.Data[0].Embedding, nil
}

func (p *HTTPProvider) Dimension() int {
	return p.dimension
}

func (p *HTTPProvider) Name() string {
	return ProviderHTTP
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// HashProvider derives deterministic embeddings from SHA-256 digests.
// It needs no network and serves as the offline fallback; the vectors
// carry no semantic meaning but are stable across runs, which keeps
// change detection and ranking reproducible.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates the deterministic offline embedder.
func NewHashProvider() *HashProvider {
	return &HashProvider{dimension: HashDimension}
}

// Embed maps text to a fixed vector by chaining SHA-256 blocks.
// Empty text returns the zero vector.
func (h *HashProvider) Embed(_ context.Context, text string) []float32 {
	vec := make([]float32, h.dimension)
	if text == "" {
		return vec
	}

	digest := sha256.Sum256([]byte(text))
	for i := 0; i < h.dimension; i += len(digest) {
		for j := 0; j < len(digest) && i+j < h.dimension; j++ {
			// Map bytes into [-1, 1]
			vec[i+j] = float32(digest[j])/127.5 - 1.0
		}
		digest = sha256.Sum256(digest[:])
	}
	return vec
}

func (h *HashProvider) Dimension() int {
	return h.dimension
}

func (h *HashProvider) Name() string {
	return ProviderHash
}

func (h *HashProvider) Close() error {
	return nil
}
