package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tieubaoca/lesson-rag/config"
	"github.com/tieubaoca/lesson-rag/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

// collectionNameInvalid matches every character Weaviate rejects in class
// names.
var collectionNameInvalid = regexp.MustCompile(`[^A-Za-z0-9_]`)

// searchHit is one raw result from the index, before scoring.
type searchHit struct {
	Text     string
	Distance float64
	Metadata map[string]interface{}
}

// lessonIndex is the raw collection backend behind WeaviateStore. It exists
// so the store's batching, breaker and scoring logic can be tested against
// a fake index.
type lessonIndex interface {
	EnsureReady(ctx context.Context) error
	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, name string) error
	AddBatch(ctx context.Context, name string, chunks []types.DocumentChunk, embeddings [][]float32) error
	Query(ctx context.Context, name string, vector []float32, limit int) ([]searchHit, error)
	DeleteCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
}

// WeaviateStore keeps one Weaviate class per lesson and guards every
// backend interaction with a circuit breaker.
type WeaviateStore struct {
	cfg       config.VectorStoreConfig
	retrieval config.RetrievalConfig
	batchSize int
	embedder  Embedder
	index     lessonIndex
	breaker   *circuitBreaker
	logger    *zap.Logger

	mu          sync.Mutex
	initialized bool
}

func NewWeaviateStore(cfg config.VectorStoreConfig, retrieval config.RetrievalConfig, batchSize int, embedder Embedder, logger *zap.Logger) (*WeaviateStore, error) {
	wvCfg := weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	}
	if cfg.APIKey != "" {
		wvCfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(wvCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %v", err)
	}

	return &WeaviateStore{
		cfg:       cfg,
		retrieval: retrieval,
		batchSize: batchSize,
		embedder:  embedder,
		index:     &weaviateIndex{client: client, prefix: cfg.CollectionPrefix},
		breaker:   newCircuitBreaker(cfg.MaxFailures, logger),
		logger:    logger,
	}, nil
}

// collectionName maps a lesson ID to its Weaviate class name. Characters
// Weaviate cannot accept are replaced with underscores, so distinct lesson
// IDs that differ only in punctuation may collide.
func (s *WeaviateStore) collectionName(lessonID string) string {
	return s.cfg.CollectionPrefix + collectionNameInvalid.ReplaceAllString(lessonID, "_")
}

// Initialize verifies the backend is reachable. It is safe to call more
// than once.
func (s *WeaviateStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if err := s.index.EnsureReady(ctx); err != nil {
		return fmt.Errorf("vector store is not ready: %v", err)
	}

	// Warm up the embedding model too unless running index-only.
	if !s.cfg.IndexOnly {
		if err := s.embedder.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize embedding service: %v", err)
		}
	}

	s.initialized = true
	s.logger.Info("vector store initialized",
		zap.String("host", s.cfg.Host),
		zap.String("scheme", s.cfg.Scheme))
	return nil
}

func (s *WeaviateStore) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *WeaviateStore) ensureInitialized(ctx context.Context) error {
	if s.IsInitialized() {
		return nil
	}
	return s.Initialize(ctx)
}

func (s *WeaviateStore) getOrCreateCollection(ctx context.Context, name string) error {
	exists, err := s.index.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %v", name, err)
	}
	if exists {
		return nil
	}

	s.logger.Info("creating lesson collection", zap.String("collection", name))
	if err := s.index.CreateCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to create collection %s: %v", name, err)
	}
	return nil
}

// AddDocuments embeds the chunks in fixed-size batches and writes each
// batch to the lesson's collection as one store call. The circuit breaker
// is checked first and success or failure is recorded once for the whole
// operation.
func (s *WeaviateStore) AddDocuments(ctx context.Context, lessonID string, chunks []types.DocumentChunk) error {
	if err := s.breaker.check(); err != nil {
		return err
	}

	err := s.addDocuments(ctx, lessonID, chunks)
	if err != nil {
		s.breaker.recordFailure()
		return err
	}

	s.breaker.recordSuccess()
	return nil
}

func (s *WeaviateStore) addDocuments(ctx context.Context, lessonID string, chunks []types.DocumentChunk) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}

	// Blank chunks would be skipped by the embedder and desync the
	// id/embedding pairing, so drop them up front.
	filtered := make([]types.DocumentChunk, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) != "" {
			filtered = append(filtered, chunk)
		}
	}
	if len(filtered) == 0 {
		s.logger.Warn("no non-empty chunks to add", zap.String("lesson_id", lessonID))
		return nil
	}

	name := s.collectionName(lessonID)
	if err := s.getOrCreateCollection(ctx, name); err != nil {
		return err
	}

	total := len(filtered)
	for start := 0; start < total; start += s.batchSize {
		end := start + s.batchSize
		if end > total {
			end = total
		}
		batch := filtered[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}

		embeddings, err := s.embedder.GenerateBatchEmbeddings(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch %d-%d: %v", start, end, err)
		}

		if err := s.index.AddBatch(ctx, name, batch, embeddings); err != nil {
			return fmt.Errorf("failed to add batch %d-%d: %v", start, end, err)
		}

		s.logger.Info("added document batch",
			zap.String("lesson_id", lessonID),
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", total))
	}

	return nil
}

// Search embeds the query and returns the lesson's chunks ranked by cosine
// similarity. Results scoring below the configured minimum are dropped and
// topK is clamped to the configured maximum. A lesson that was never
// ingested yields no results, not an error.
func (s *WeaviateStore) Search(ctx context.Context, lessonID, query string, topK int) ([]types.RetrievalResult, error) {
	if err := s.breaker.check(); err != nil {
		return nil, err
	}

	results, err := s.search(ctx, lessonID, query, topK)
	if err != nil {
		s.breaker.recordFailure()
		return nil, err
	}

	s.breaker.recordSuccess()
	return results, nil
}

func (s *WeaviateStore) search(ctx context.Context, lessonID, query string, topK int) ([]types.RetrievalResult, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	if topK <= 0 {
		topK = s.retrieval.DefaultTopK
	}
	if topK > s.retrieval.MaxTopK {
		s.logger.Warn("clamping top_k",
			zap.Int("requested", topK),
			zap.Int("max", s.retrieval.MaxTopK))
		topK = s.retrieval.MaxTopK
	}

	name := s.collectionName(lessonID)
	exists, err := s.index.HasCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %v", name, err)
	}
	if !exists {
		s.logger.Info("lesson has no collection", zap.String("lesson_id", lessonID))
		return []types.RetrievalResult{}, nil
	}

	vector, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %v", err)
	}

	hits, err := s.index.Query(ctx, name, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %v", name, err)
	}

	results := make([]types.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		score := 1 - hit.Distance
		if score < s.retrieval.MinSimilarityScore {
			continue
		}
		results = append(results, types.RetrievalResult{
			Text:     hit.Text,
			Score:    score,
			Metadata: retrievalMetadata(hit.Metadata),
		})
	}

	s.logger.Info("search completed",
		zap.String("lesson_id", lessonID),
		zap.Int("hits", len(hits)),
		zap.Int("results", len(results)))
	return results, nil
}

func retrievalMetadata(props map[string]interface{}) types.RetrievalMetadata {
	meta := types.RetrievalMetadata{}
	if v, ok := props["lessonName"].(string); ok {
		meta.LessonName = v
	}
	if v, ok := props["sourceType"].(string); ok {
		meta.SourceType = v
	}
	if v, ok := props["pageNumber"].(float64); ok {
		meta.PageNumber = int(v)
	}
	return meta
}

// DeleteLesson removes the lesson's collection. Deleting a lesson that was
// never ingested is not an error.
func (s *WeaviateStore) DeleteLesson(ctx context.Context, lessonID string) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}

	name := s.collectionName(lessonID)
	exists, err := s.index.HasCollection(ctx, name)
	if err != nil {
		s.logger.Warn("failed to check lesson before delete",
			zap.String("lesson_id", lessonID),
			zap.Error(err))
		return nil
	}
	if !exists {
		return nil
	}

	if err := s.index.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete lesson %s: %v", lessonID, err)
	}

	s.logger.Info("lesson deleted", zap.String("lesson_id", lessonID))
	return nil
}

// LessonExists reports whether the lesson has a collection. Lookup failures
// are treated as "does not exist" so existence probes never fail a request.
func (s *WeaviateStore) LessonExists(ctx context.Context, lessonID string) (bool, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return false, nil
	}

	exists, err := s.index.HasCollection(ctx, s.collectionName(lessonID))
	if err != nil {
		s.logger.Warn("lesson existence check failed",
			zap.String("lesson_id", lessonID),
			zap.Error(err))
		return false, nil
	}
	return exists, nil
}

// Cleanup deletes every collection carrying the configured prefix and
// releases the store. Destructive; intended for tests and teardown.
func (s *WeaviateStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}

	names, err := s.index.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %v", err)
	}

	for _, name := range names {
		if !strings.HasPrefix(name, s.cfg.CollectionPrefix) {
			continue
		}
		if err := s.index.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to delete collection %s: %v", name, err)
		}
		s.logger.Info("collection removed", zap.String("collection", name))
	}

	s.initialized = false
	return nil
}

// weaviateIndex is the real lessonIndex backed by a Weaviate instance.
// Chunk vectors are stored with Vectorizer "none" since embeddings are
// generated client-side.
type weaviateIndex struct {
	client *weaviate.Client
	prefix string
}

func (w *weaviateIndex) EnsureReady(ctx context.Context) error {
	ready, err := w.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ready {
		return errors.New("weaviate reports not ready")
	}
	return nil
}

func isNotFound(err error) bool {
	var clientErr *fault.WeaviateClientError
	return errors.As(err, &clientErr) && clientErr.StatusCode == 404
}

func (w *weaviateIndex) HasCollection(ctx context.Context, name string) (bool, error) {
	_, err := w.client.Schema().ClassGetter().WithClassName(name).Do(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (w *weaviateIndex) CreateCollection(ctx context.Context, name string) error {
	classObj := &models.Class{
		Class: name,
		Properties: []*models.Property{
			{Name: "chunkId", DataType: []string{"text"}},
			{Name: "text", DataType: []string{"text"}},
			{Name: "lessonId", DataType: []string{"text"}},
			{Name: "lessonName", DataType: []string{"text"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "sourceType", DataType: []string{"text"}},
			{Name: "pageNumber", DataType: []string{"int"}},
			{Name: "articleIndex", DataType: []string{"int"}},
			{Name: "videoIndex", DataType: []string{"int"}},
		},
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
	}
	return w.client.Schema().ClassCreator().WithClass(classObj).Do(ctx)
}

func (w *weaviateIndex) AddBatch(ctx context.Context, name string, chunks []types.DocumentChunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d != %d", len(chunks), len(embeddings))
	}

	batcher := w.client.Batch().ObjectsBatcher()
	for i, chunk := range chunks {
		properties := chunk.Metadata.Flatten()
		properties["chunkId"] = chunk.ID
		properties["text"] = chunk.Text

		batcher = batcher.WithObjects(&models.Object{
			Class: name,
			// Deterministic object IDs make re-ingestion an upsert.
			ID:         strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunk.ID)).String()),
			Properties: properties,
			Vector:     embeddings[i],
		})
	}

	resp, err := batcher.Do(ctx)
	if err != nil {
		return err
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch object rejected: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

func (w *weaviateIndex) Query(ctx context.Context, name string, vector []float32, limit int) ([]searchHit, error) {
	fields := []graphql.Field{
		{Name: "chunkId"},
		{Name: "text"},
		{Name: "lessonId"},
		{Name: "lessonName"},
		{Name: "chunkIndex"},
		{Name: "sourceType"},
		{Name: "pageNumber"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}},
	}

	nearVector := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)

	result, err := w.client.GraphQL().Get().
		WithClassName(name).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("query failed: %v", result.Errors[0].Message)
	}

	var hits []searchHit
	data, ok := result.Data["Get"].(map[string]interface{})[name].([]interface{})
	if !ok {
		return hits, nil
	}

	for _, item := range data {
		props, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		hit := searchHit{Metadata: map[string]interface{}{}}
		for key, value := range props {
			if key == "_additional" {
				continue
			}
			if key == "text" {
				if text, ok := value.(string); ok {
					hit.Text = text
				}
				continue
			}
			hit.Metadata[key] = value
		}

		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if distance, ok := additional["distance"].(float64); ok {
				hit.Distance = distance
			}
		}

		hits = append(hits, hit)
	}

	return hits, nil
}

func (w *weaviateIndex) DeleteCollection(ctx context.Context, name string) error {
	err := w.client.Schema().ClassDeleter().WithClassName(name).Do(ctx)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (w *weaviateIndex) ListCollections(ctx context.Context) ([]string, error) {
	schema, err := w.client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(schema.Classes))
	for _, class := range schema.Classes {
		names = append(names, class.Class)
	}
	return names, nil
}
