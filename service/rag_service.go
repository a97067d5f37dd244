package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/tieubaoca/lesson-rag/database"
	"github.com/tieubaoca/lesson-rag/types"
	"go.uber.org/zap"
)

// RAGService orchestrates the full ingestion and retrieval pipeline:
// download, content processing, embedding and vector storage.
type RAGService struct {
	downloader *DownloadService
	processor  *ContentProcessor
	store      database.VectorDatabase
	logger     *zap.Logger
}

func NewRAGService(downloader *DownloadService, processor *ContentProcessor, store database.VectorDatabase, logger *zap.Logger) *RAGService {
	return &RAGService{
		downloader: downloader,
		processor:  processor,
		store:      store,
		logger:     logger,
	}
}

// emit sends a progress event when a status channel was provided.
func emit(status chan<- types.IngestStatus, state, message string, progress int) {
	if status == nil {
		return
	}
	status <- types.IngestStatus{
		Status:   state,
		Message:  message,
		Progress: progress,
	}
}

func validateIngestRequest(req types.IngestLessonRequest) error {
	if strings.TrimSpace(req.LessonID) == "" {
		return fmt.Errorf("lessonId is required")
	}
	if strings.TrimSpace(req.LessonName) == "" {
		return fmt.Errorf("lessonName is required")
	}
	if len(req.PDFFiles) == 0 && len(req.Articles) == 0 && len(req.VideoTranscripts) == 0 {
		return fmt.Errorf("at least one content source is required")
	}
	return nil
}

// ProcessContent ingests every source of a lesson into the vector store.
// A previously ingested lesson is deleted first, so re-ingestion replaces
// the lesson's content rather than appending to it. Progress events are
// sent on status when it is non-nil; the caller must keep consuming until
// ProcessContent returns.
func (s *RAGService) ProcessContent(ctx context.Context, req types.IngestLessonRequest, status chan<- types.IngestStatus) (*types.IngestionResult, error) {
	if err := validateIngestRequest(req); err != nil {
		return nil, err
	}

	s.logger.Info("starting lesson ingestion",
		zap.String("lesson_id", req.LessonID),
		zap.String("lesson_name", req.LessonName),
		zap.Int("pdf_files", len(req.PDFFiles)),
		zap.Int("articles", len(req.Articles)),
		zap.Int("video_transcripts", len(req.VideoTranscripts)))

	emit(status, "started", "starting lesson ingestion", 0)

	exists, err := s.store.LessonExists(ctx, req.LessonID)
	if err == nil && exists {
		s.logger.Info("lesson already exists, replacing", zap.String("lesson_id", req.LessonID))
		emit(status, "processing", "removing previous lesson content", 5)
		if err := s.store.DeleteLesson(ctx, req.LessonID); err != nil {
			return nil, fmt.Errorf("failed to replace existing lesson: %v", err)
		}
	}

	var allChunks []types.DocumentChunk
	breakdown := types.IngestionBreakdown{}

	if len(req.PDFFiles) > 0 {
		emit(status, "processing", fmt.Sprintf("downloading %d PDF file(s)", len(req.PDFFiles)), 10)
		files, err := s.downloader.DownloadMultiple(ctx, req.PDFFiles)
		if err != nil {
			return nil, err
		}

		emit(status, "processing", "extracting PDF content", 30)
		pdfChunks, err := s.processor.ProcessMultiplePDFs(files, req.LessonID, req.LessonName, nil)
		if err != nil {
			return nil, err
		}
		breakdown.PDFChunks = len(pdfChunks)
		allChunks = append(allChunks, pdfChunks...)
	}

	if len(req.Articles) > 0 {
		emit(status, "processing", fmt.Sprintf("processing %d article(s)", len(req.Articles)), 50)
		articleChunks, err := s.processor.ProcessArticles(req.Articles, req.LessonID, req.LessonName, nil)
		if err != nil {
			return nil, err
		}
		breakdown.ArticleChunks = len(articleChunks)
		allChunks = append(allChunks, articleChunks...)
	}

	if len(req.VideoTranscripts) > 0 {
		emit(status, "processing", fmt.Sprintf("processing %d video transcript(s)", len(req.VideoTranscripts)), 60)
		videoChunks, err := s.processor.ProcessVideoTranscripts(req.VideoTranscripts, req.LessonID, req.LessonName, nil)
		if err != nil {
			return nil, err
		}
		breakdown.VideoChunks = len(videoChunks)
		allChunks = append(allChunks, videoChunks...)
	}

	if len(allChunks) == 0 {
		return nil, types.ErrNoChunksCreated
	}

	emit(status, "processing", fmt.Sprintf("indexing %d chunk(s)", len(allChunks)), 70)
	if err := s.store.AddDocuments(ctx, req.LessonID, allChunks); err != nil {
		return nil, err
	}

	result := &types.IngestionResult{
		ChunksCreated: len(allChunks),
		Breakdown:     breakdown,
		Message:       fmt.Sprintf("lesson %s ingested with %d chunks", req.LessonID, len(allChunks)),
	}

	s.logger.Info("lesson ingestion completed",
		zap.String("lesson_id", req.LessonID),
		zap.Int("chunks_created", result.ChunksCreated),
		zap.Int("pdf_chunks", breakdown.PDFChunks),
		zap.Int("article_chunks", breakdown.ArticleChunks),
		zap.Int("video_chunks", breakdown.VideoChunks))

	emit(status, "completed", result.Message, 100)
	return result, nil
}

// Retrieve returns the lesson passages most similar to the query. Asking
// about a lesson that was never ingested yields an empty result set.
func (s *RAGService) Retrieve(ctx context.Context, req types.SearchRequest) ([]types.RetrievalResult, error) {
	if strings.TrimSpace(req.LessonID) == "" {
		return nil, fmt.Errorf("lessonId is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	exists, err := s.store.LessonExists(ctx, req.LessonID)
	if err != nil || !exists {
		s.logger.Info("retrieval for unknown lesson", zap.String("lesson_id", req.LessonID))
		return []types.RetrievalResult{}, nil
	}

	return s.store.Search(ctx, req.LessonID, req.Query, req.TopK)
}

// DeleteLesson removes a lesson's indexed content.
func (s *RAGService) DeleteLesson(ctx context.Context, lessonID string) error {
	if strings.TrimSpace(lessonID) == "" {
		return fmt.Errorf("lessonId is required")
	}
	return s.store.DeleteLesson(ctx, lessonID)
}

// LessonExists reports whether a lesson has indexed content.
func (s *RAGService) LessonExists(ctx context.Context, lessonID string) (bool, error) {
	if strings.TrimSpace(lessonID) == "" {
		return false, fmt.Errorf("lessonId is required")
	}
	return s.store.LessonExists(ctx, lessonID)
}
