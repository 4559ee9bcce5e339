package embed

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAI embeds through any OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	model    string
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewOpenAI creates the embedder. An empty baseURL means api.openai.com; an
// empty token is replaced by "none" for local compatible services.
func NewOpenAI(model, baseURL, token string, logger *slog.Logger) (*OpenAI, error) {
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &OpenAI{
		model:    model,
		embedder: embedder,
		logger:   logger.With("component", "openai-embedder"),
	}, nil
}

func (e *OpenAI) Model() string {
	return "openai/" + e.model
}

func (e *OpenAI) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return single(ctx, e, text)
}

func (e *OpenAI) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(texts); err != nil {
		return nil, err
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	return vecs, nil
}
