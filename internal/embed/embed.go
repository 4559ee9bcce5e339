// Package embed turns text into fixed-dimension vectors.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/TobiSchelling/newsjuice/internal/config"
)

// ErrEmptyText is returned for empty or whitespace-only input.
var ErrEmptyText = errors.New("embed: empty text")

// Embedder maps text to vectors of a fixed dimension. Batch results equal
// one-at-a-time results.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// New builds the configured provider. Network providers are wrapped with
// retries when cfg.RetryAttempts > 1.
func New(cfg config.Embedding, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "", "hashing":
		return NewHashing(cfg.Dimension)
	case "ollama":
		e, err = NewOllama(cfg.Model, cfg.BaseURL, time.Duration(cfg.TimeoutSeconds)*time.Second, cfg.Dimension)
	case "openai":
		key := ""
		if cfg.APIKeyEnv != "" {
			key = os.Getenv(cfg.APIKeyEnv)
		}
		if key == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("%w: %s is not set", config.ErrConfiguration, cfg.APIKeyEnv)
		}
		e, err = NewOpenAI(cfg.Model, cfg.BaseURL, key, logger)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", config.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RetryAttempts > 1 {
		e = WithRetry(e, cfg.RetryAttempts, time.Duration(cfg.RetryDelayMS)*time.Millisecond, logger)
	}
	return e, nil
}

func checkTexts(texts []string) error {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w (batch index %d)", ErrEmptyText, i)
		}
	}
	return nil
}

func single(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 text", len(vecs))
	}
	return vecs[0], nil
}
