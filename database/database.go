package database

import (
	"context"

	"github.com/tieubaoca/lesson-rag/types"
)

// Embedder is the embedding backend the vector store depends on. The
// service package's embedding implementations satisfy it.
type Embedder interface {
	Initialize(ctx context.Context) error
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorDatabase persists chunk vectors in per-lesson collections and
// answers similarity queries.
type VectorDatabase interface {
	Initialize(ctx context.Context) error
	IsInitialized() bool
	AddDocuments(ctx context.Context, lessonID string, chunks []types.DocumentChunk) error
	Search(ctx context.Context, lessonID, query string, topK int) ([]types.RetrievalResult, error)
	DeleteLesson(ctx context.Context, lessonID string) error
	LessonExists(ctx context.Context, lessonID string) (bool, error)
	Cleanup(ctx context.Context) error
}
