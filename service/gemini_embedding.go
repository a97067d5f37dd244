package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/tieubaoca/lesson-rag/config"
	"github.com/tieubaoca/lesson-rag/types"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiEmbeddingService generates embeddings with Google's embedding models.
// It satisfies the same Embedder contract as the OpenAI-compatible backend.
type GeminiEmbeddingService struct {
	cfg    config.EmbeddingConfig
	logger *zap.Logger

	mu          sync.Mutex
	client      *genai.Client
	model       *genai.EmbeddingModel
	initialized bool
}

func NewGeminiEmbeddingService(cfg config.EmbeddingConfig, logger *zap.Logger) *GeminiEmbeddingService {
	return &GeminiEmbeddingService{
		cfg:    cfg,
		logger: logger,
	}
}

func (s *GeminiEmbeddingService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		s.logger.Debug("embedding service already initialized")
		return nil
	}

	s.logger.Info("initializing embedding model", zap.String("model", s.cfg.Model))
	start := time.Now()

	client, err := genai.NewClient(ctx, option.WithAPIKey(s.cfg.APIKey))
	if err != nil {
		s.logger.Error("failed to initialize embedding model", zap.Error(err))
		return fmt.Errorf("embedding model initialization failed: %w", err)
	}

	s.client = client
	s.model = client.EmbeddingModel(s.cfg.Model)
	s.initialized = true

	s.logger.Info("embedding model initialized",
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (s *GeminiEmbeddingService) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *GeminiEmbeddingService) ensureInitialized(ctx context.Context) (*genai.EmbeddingModel, error) {
	if !s.IsInitialized() {
		if err := s.Initialize(ctx); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model, nil
}

func (s *GeminiEmbeddingService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyText
	}

	model, err := s.ensureInitialized(ctx)
	if err != nil {
		return nil, err
	}

	res, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		s.logger.Error("embedding generation failed",
			zap.Error(err),
			zap.Int("text_length", len(text)))
		return nil, fmt.Errorf("failed to generate embedding")
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("failed to generate embedding")
	}

	return res.Embedding.Values, nil
}

func (s *GeminiEmbeddingService) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if _, err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	if len(texts) == 0 {
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

func (s *GeminiEmbeddingService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("error during embedding model cleanup", zap.Error(err))
		}
	}
	s.client = nil
	s.model = nil
	s.initialized = false
	return nil
}
