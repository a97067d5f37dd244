package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/lesson-rag/config"
	"github.com/tieubaoca/lesson-rag/types"
	"go.uber.org/zap"
)

// fakeEmbedder counts calls and returns fixed-length vectors.
type fakeEmbedder struct {
	initCalls   int
	singleCalls int
	batchCalls  int
	err         error
}

func (f *fakeEmbedder) Initialize(ctx context.Context) error {
	f.initCalls++
	return nil
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.singleCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// fakeIndex records every index interaction.
type fakeIndex struct {
	collections map[string]bool

	addBatchSizes []int
	lastLimit     int
	queryCalls    int
	deleteCalls   []string

	hasErr    error
	createErr error
	addErr    error
	queryErr  error
	deleteErr error
	hits      []searchHit
}

func newFakeIndex(existing ...string) *fakeIndex {
	collections := map[string]bool{}
	for _, name := range existing {
		collections[name] = true
	}
	return &fakeIndex{collections: collections}
}

func (f *fakeIndex) EnsureReady(ctx context.Context) error { return nil }

func (f *fakeIndex) HasCollection(ctx context.Context, name string) (bool, error) {
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.collections[name], nil
}

func (f *fakeIndex) CreateCollection(ctx context.Context, name string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.collections[name] = true
	return nil
}

func (f *fakeIndex) AddBatch(ctx context.Context, name string, chunks []types.DocumentChunk, embeddings [][]float32) error {
	if f.addErr != nil {
		return f.addErr
	}
	if len(chunks) != len(embeddings) {
		return errors.New("chunk/embedding count mismatch")
	}
	f.addBatchSizes = append(f.addBatchSizes, len(chunks))
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, name string, vector []float32, limit int) ([]searchHit, error) {
	f.queryCalls++
	f.lastLimit = limit
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.hits, nil
}

func (f *fakeIndex) DeleteCollection(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, name)
	delete(f.collections, name)
	return nil
}

func (f *fakeIndex) ListCollections(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	return names, nil
}

func newTestStore(index lessonIndex, embedder Embedder, batchSize int) *WeaviateStore {
	return &WeaviateStore{
		cfg: config.VectorStoreConfig{
			CollectionPrefix: "Lesson_",
			MaxFailures:      5,
		},
		retrieval: config.RetrievalConfig{
			DefaultTopK:        5,
			MaxTopK:            10,
			MinSimilarityScore: 0.3,
		},
		batchSize:   batchSize,
		embedder:    embedder,
		index:       index,
		breaker:     newCircuitBreaker(5, zap.NewNop()),
		logger:      zap.NewNop(),
		initialized: true,
	}
}

func makeChunks(n int) []types.DocumentChunk {
	chunks := make([]types.DocumentChunk, n)
	for i := range chunks {
		chunks[i] = types.DocumentChunk{
			ID:   "l1_Lesson_article0_chunk_" + string(rune('0'+i)),
			Text: "chunk text",
			Metadata: types.ArticleMeta{
				BaseMetadata: types.BaseMetadata{LessonID: "l1", LessonName: "Lesson", ChunkIndex: i},
			},
		}
	}
	return chunks
}

func TestInitialize_WarmsEmbedderUnlessIndexOnly(t *testing.T) {
	embedder := &fakeEmbedder{}
	s := newTestStore(newFakeIndex(), embedder, 2)
	s.initialized = false

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, 1, embedder.initCalls)
	assert.True(t, s.IsInitialized())

	// Idempotent: a second call does nothing.
	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, 1, embedder.initCalls)

	indexOnly := &fakeEmbedder{}
	s2 := newTestStore(newFakeIndex(), indexOnly, 2)
	s2.initialized = false
	s2.cfg.IndexOnly = true

	require.NoError(t, s2.Initialize(context.Background()))
	assert.Equal(t, 0, indexOnly.initCalls)
}

func TestCollectionName_Sanitized(t *testing.T) {
	s := newTestStore(newFakeIndex(), &fakeEmbedder{}, 2)

	assert.Equal(t, "Lesson_abc_123", s.collectionName("abc-123"))
	assert.Equal(t, "Lesson_a_b_c", s.collectionName("a b/c"))
	assert.Equal(t, "Lesson_plain", s.collectionName("plain"))
}

func TestAddDocuments_BatchSizes(t *testing.T) {
	index := newFakeIndex()
	embedder := &fakeEmbedder{}
	s := newTestStore(index, embedder, 2)

	err := s.AddDocuments(context.Background(), "l1", makeChunks(5))
	require.NoError(t, err)

	// Five chunks with batch size two means exactly three store writes.
	assert.Equal(t, []int{2, 2, 1}, index.addBatchSizes)
	assert.Equal(t, 3, embedder.batchCalls)
	assert.True(t, index.collections["Lesson_l1"])
}

func TestAddDocuments_SkipsBlankChunks(t *testing.T) {
	index := newFakeIndex()
	s := newTestStore(index, &fakeEmbedder{}, 2)

	chunks := makeChunks(2)
	chunks = append(chunks, types.DocumentChunk{ID: "blank", Text: "   "})

	err := s.AddDocuments(context.Background(), "l1", chunks)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, index.addBatchSizes)
}

func TestAddDocuments_AllBlank(t *testing.T) {
	index := newFakeIndex()
	s := newTestStore(index, &fakeEmbedder{}, 2)

	err := s.AddDocuments(context.Background(), "l1", []types.DocumentChunk{
		{ID: "a", Text: ""},
		{ID: "b", Text: "  "},
	})
	require.NoError(t, err)
	assert.Empty(t, index.addBatchSizes)
	assert.False(t, index.collections["Lesson_l1"])
}

func TestAddDocuments_CircuitBreakerOpens(t *testing.T) {
	index := newFakeIndex()
	index.addErr = errors.New("store down")
	embedder := &fakeEmbedder{}
	s := newTestStore(index, embedder, 2)

	for i := 0; i < 5; i++ {
		err := s.AddDocuments(context.Background(), "l1", makeChunks(1))
		require.Error(t, err)
		assert.NotErrorIs(t, err, types.ErrCircuitOpen)
	}

	embedCallsBefore := embedder.batchCalls
	queryCallsBefore := index.queryCalls

	// The breaker is now open: calls fail fast without touching any backend.
	err := s.AddDocuments(context.Background(), "l1", makeChunks(1))
	assert.ErrorIs(t, err, types.ErrCircuitOpen)
	assert.Equal(t, embedCallsBefore, embedder.batchCalls)

	_, err = s.Search(context.Background(), "l1", "query", 5)
	assert.ErrorIs(t, err, types.ErrCircuitOpen)
	assert.Equal(t, queryCallsBefore, index.queryCalls)
	assert.Equal(t, 0, embedder.singleCalls)
}

func TestAddDocuments_SuccessResetsBreaker(t *testing.T) {
	index := newFakeIndex()
	index.addErr = errors.New("store down")
	s := newTestStore(index, &fakeEmbedder{}, 2)

	for i := 0; i < 3; i++ {
		require.Error(t, s.AddDocuments(context.Background(), "l1", makeChunks(1)))
	}

	index.addErr = nil
	require.NoError(t, s.AddDocuments(context.Background(), "l1", makeChunks(1)))
	assert.Equal(t, 0, s.breaker.failureCount)
	assert.False(t, s.breaker.open)
}

func TestAddDocuments_EmbeddingFailureCountsAgainstBreaker(t *testing.T) {
	index := newFakeIndex()
	embedder := &fakeEmbedder{err: errors.New("model gone")}
	s := newTestStore(index, embedder, 2)

	err := s.AddDocuments(context.Background(), "l1", makeChunks(1))
	require.Error(t, err)
	assert.Equal(t, 1, s.breaker.failureCount)
}

func TestSearch_ScoresAndFilters(t *testing.T) {
	index := newFakeIndex("Lesson_l1")
	index.hits = []searchHit{
		{Text: "close", Distance: 0.1, Metadata: map[string]interface{}{"lessonName": "Lesson", "sourceType": "pdf", "pageNumber": float64(3)}},
		{Text: "middling", Distance: 0.5, Metadata: map[string]interface{}{"lessonName": "Lesson", "sourceType": "article"}},
		{Text: "far", Distance: 0.9, Metadata: map[string]interface{}{"lessonName": "Lesson"}},
	}
	s := newTestStore(index, &fakeEmbedder{}, 2)

	results, err := s.Search(context.Background(), "l1", "question", 5)
	require.NoError(t, err)
	// The 0.1-score hit falls below the 0.3 minimum.
	require.Len(t, results, 2)

	assert.Equal(t, "close", results[0].Text)
	assert.InDelta(t, 0.9, results[0].Score, 1e-9)
	assert.Equal(t, "Lesson", results[0].Metadata.LessonName)
	assert.Equal(t, "pdf", results[0].Metadata.SourceType)
	assert.Equal(t, 3, results[0].Metadata.PageNumber)

	assert.Equal(t, "middling", results[1].Text)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)
	assert.Zero(t, results[1].Metadata.PageNumber)
}

func TestSearch_TopKClamping(t *testing.T) {
	index := newFakeIndex("Lesson_l1")
	s := newTestStore(index, &fakeEmbedder{}, 2)

	_, err := s.Search(context.Background(), "l1", "q", 50)
	require.NoError(t, err)
	assert.Equal(t, 10, index.lastLimit)

	_, err = s.Search(context.Background(), "l1", "q", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, index.lastLimit)

	_, err = s.Search(context.Background(), "l1", "q", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, index.lastLimit)
}

func TestSearch_UnknownLesson(t *testing.T) {
	index := newFakeIndex()
	embedder := &fakeEmbedder{}
	s := newTestStore(index, embedder, 2)

	results, err := s.Search(context.Background(), "never-ingested", "q", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	// No embedding or query work is done for a lesson with no collection.
	assert.Equal(t, 0, embedder.singleCalls)
	assert.Equal(t, 0, index.queryCalls)
}

func TestSearch_QueryErrorCountsAgainstBreaker(t *testing.T) {
	index := newFakeIndex("Lesson_l1")
	index.queryErr = errors.New("graphql exploded")
	s := newTestStore(index, &fakeEmbedder{}, 2)

	_, err := s.Search(context.Background(), "l1", "q", 5)
	require.Error(t, err)
	assert.Equal(t, 1, s.breaker.failureCount)
}

func TestDeleteLesson_Tolerant(t *testing.T) {
	index := newFakeIndex("Lesson_l1")
	s := newTestStore(index, &fakeEmbedder{}, 2)

	require.NoError(t, s.DeleteLesson(context.Background(), "l1"))
	assert.Equal(t, []string{"Lesson_l1"}, index.deleteCalls)

	// Deleting again, or deleting a lesson that never existed, still succeeds.
	require.NoError(t, s.DeleteLesson(context.Background(), "l1"))
	require.NoError(t, s.DeleteLesson(context.Background(), "ghost"))
	assert.Len(t, index.deleteCalls, 1)

	// Even a lookup failure does not surface from delete.
	index.hasErr = errors.New("connection refused")
	assert.NoError(t, s.DeleteLesson(context.Background(), "l1"))
}

func TestLessonExists(t *testing.T) {
	index := newFakeIndex("Lesson_l1")
	s := newTestStore(index, &fakeEmbedder{}, 2)

	exists, err := s.LessonExists(context.Background(), "l1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.LessonExists(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, exists)

	// Lookup failures read as "does not exist", never as an error.
	index.hasErr = errors.New("connection refused")
	exists, err = s.LessonExists(context.Background(), "l1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCleanup_RemovesOnlyPrefixedCollections(t *testing.T) {
	index := newFakeIndex("Lesson_a", "Lesson_b", "Unrelated")
	s := newTestStore(index, &fakeEmbedder{}, 2)

	require.NoError(t, s.Cleanup(context.Background()))

	assert.ElementsMatch(t, []string{"Lesson_a", "Lesson_b"}, index.deleteCalls)
	assert.True(t, index.collections["Unrelated"])
	assert.False(t, s.IsInitialized())
}
