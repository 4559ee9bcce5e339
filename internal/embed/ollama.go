package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama generates embeddings via the Ollama /api/embed endpoint.
type Ollama struct {
	model   string
	baseURL string
	dim     int
	client  *http.Client
}

// NewOllama creates an Ollama embedder. A dim of zero disables the
// dimension check.
func NewOllama(model, baseURL string, timeout time.Duration, dim int) (*Ollama, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Ollama{
		model:   model,
		baseURL: baseURL,
		dim:     dim,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (o *Ollama) Model() string {
	return "ollama/" + o.model
}

func (o *Ollama) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return single(ctx, o, text)
}

// EmbedTexts sends the whole batch in one request.
func (o *Ollama) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(texts); err != nil {
		return nil, err
	}

	data, err := json.Marshal(map[string]any{
		"model": o.model,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embed returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embeddings: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		if o.dim > 0 && len(e) != o.dim {
			return nil, fmt.Errorf("ollama model %s returned dimension %d, configured %d", o.model, len(e), o.dim)
		}
		v := make([]float32, len(e))
		for j, x := range e {
			v[j] = float32(x)
		}
		out[i] = v
	}
	return out, nil
}
