package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tieubaoca/lesson-rag/config"
	"github.com/tieubaoca/lesson-rag/types"
	"go.uber.org/zap"
)

// batchProgressEvery controls how often sequential batch embedding logs
// progress.
const batchProgressEvery = 10

// Embedder turns text into fixed-length vectors. Implementations hold a
// single model handle: batches run sequentially, never in parallel.
type Embedder interface {
	Initialize(ctx context.Context) error
	IsInitialized() bool
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Cleanup() error
}

// NewEmbedder selects the embedding backend from config.
func NewEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIEmbeddingService(cfg, logger), nil
	case "gemini":
		return NewGeminiEmbeddingService(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// OpenAIEmbeddingService generates embeddings through an OpenAI-compatible
// endpoint, typically a local inference server hosting a sentence-transformer
// model.
type OpenAIEmbeddingService struct {
	cfg    config.EmbeddingConfig
	logger *zap.Logger

	mu          sync.Mutex
	client      *openai.Client
	initialized bool
}

func NewOpenAIEmbeddingService(cfg config.EmbeddingConfig, logger *zap.Logger) *OpenAIEmbeddingService {
	return &OpenAIEmbeddingService{
		cfg:    cfg,
		logger: logger,
	}
}

// Initialize creates the client and verifies the model responds. Calling it
// again when already initialized is a no-op.
func (s *OpenAIEmbeddingService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		s.logger.Debug("embedding service already initialized")
		return nil
	}

	s.logger.Info("initializing embedding model",
		zap.String("model", s.cfg.Model),
		zap.String("base_url", s.cfg.BaseURL))

	start := time.Now()

	clientConfig := openai.DefaultConfig(s.cfg.APIKey)
	clientConfig.BaseURL = s.cfg.BaseURL
	client := openai.NewClientWithConfig(clientConfig)

	// Probe request so a broken endpoint or missing model fails here
	// instead of mid-ingestion.
	_, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{"ping"},
		Model: openai.EmbeddingModel(s.cfg.Model),
	})
	if err != nil {
		s.logger.Error("failed to initialize embedding model", zap.Error(err))
		return fmt.Errorf("embedding model initialization failed: %w", err)
	}

	s.client = client
	s.initialized = true

	s.logger.Info("embedding model initialized",
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *OpenAIEmbeddingService) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *OpenAIEmbeddingService) ensureInitialized(ctx context.Context) (*openai.Client, error) {
	if !s.IsInitialized() {
		if err := s.Initialize(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client, nil
}

// GenerateEmbedding embeds a single text, initializing the model on first
// use. Blank input is an error, never a silent zero vector.
func (s *OpenAIEmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyText
	}

	client, err := s.ensureInitialized(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("generating embedding", zap.Int("text_length", len(text)))

	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(s.cfg.Model),
	})
	if err != nil {
		// The backend error is logged but not surfaced to the caller.
		s.logger.Error("embedding generation failed",
			zap.Error(err),
			zap.Int("text_length", len(text)))
		return nil, fmt.Errorf("failed to generate embedding")
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("failed to generate embedding")
	}

	return resp.Data[0].Embedding, nil
}

// GenerateBatchEmbeddings embeds texts strictly in input order, one at a
// time. Blank entries are skipped, so the result may be shorter than the
// input; a failure on any non-blank entry fails the whole batch.
func (s *OpenAIEmbeddingService) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if _, err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	if len(texts) == 0 {
		s.logger.Debug("empty texts slice provided for batch embedding")
		return [][]float32{}, nil
	}

	s.logger.Info("generating batch embeddings", zap.Int("count", len(texts)))
	start := time.Now()

	embeddings := make([][]float32, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			s.logger.Debug("skipping empty text in batch", zap.Int("index", i))
			continue
		}

		embedding, err := s.GenerateEmbedding(ctx, text)
		if err != nil {
			s.logger.Error("failed to generate embedding in batch",
				zap.Error(err),
				zap.Int("index", i))
			return nil, err
		}
		embeddings = append(embeddings, embedding)

		if (i+1)%batchProgressEvery == 0 {
			s.logger.Info("batch embedding progress",
				zap.Int("processed", i+1),
				zap.Int("total", len(texts)))
		}
	}

	s.logger.Info("batch embeddings generated",
		zap.Int("count", len(embeddings)),
		zap.Duration("duration", time.Since(start)))

	return embeddings, nil
}

// Cleanup drops the client handle. Safe to call when never initialized.
func (s *OpenAIEmbeddingService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.logger.Info("embedding model resources released")
	}
	s.client = nil
	s.initialized = false
	return nil
}
