package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/tieubaoca/lesson-rag/types"
	"go.uber.org/zap"
)

// pdfParseFunc extracts plain text from PDF bytes, returning the text and
// the page count.
type pdfParseFunc func(data []byte) (string, int, error)

// ContentProcessor turns raw lesson material into typed chunks with
// provenance metadata. PDF extraction, article chunking and video transcript
// processing all funnel through the same ChunkingService.
type ContentProcessor struct {
	chunker *ChunkingService
	logger  *zap.Logger

	loadOnce sync.Once
	parse    pdfParseFunc
}

func NewContentProcessor(chunker *ChunkingService, logger *zap.Logger) *ContentProcessor {
	return &ContentProcessor{
		chunker: chunker,
		logger:  logger,
	}
}

// loadPDFParser binds the parsing backend on first use.
func (p *ContentProcessor) loadPDFParser() pdfParseFunc {
	p.loadOnce.Do(func() {
		if p.parse == nil {
			p.parse = parsePDFBytes
			p.logger.Debug("PDF parser loaded")
		}
	})
	return p.parse
}

func parsePDFBytes(data []byte) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", 0, err
	}

	return buf.String(), reader.NumPage(), nil
}

// ExtractTextFromPDF extracts and trims the text content of a PDF. Parser
// failures are logged and surfaced as a generic extraction error so library
// internals never leak into the caller contract.
func (p *ContentProcessor) ExtractTextFromPDF(data []byte) (string, error) {
	parse := p.loadPDFParser()

	text, pages, err := parse(data)
	if err != nil {
		p.logger.Error("PDF text extraction failed", zap.Error(err))
		return "", types.ErrPDFExtraction
	}

	p.logger.Info("PDF text extracted", zap.Int("pages", pages))
	return strings.TrimSpace(text), nil
}

// ProcessPDF extracts a PDF and chunks it into PDF-tagged document chunks.
// Page numbers are a rough estimate derived from the chunk index, not an
// exact page mapping.
func (p *ContentProcessor) ProcessPDF(data []byte, lessonID, lessonName string, opts *types.ChunkOptions) ([]types.DocumentChunk, error) {
	p.logger.Info("processing PDF",
		zap.String("lesson_id", lessonID),
		zap.String("lesson_name", lessonName))

	fullText, err := p.ExtractTextFromPDF(data)
	if err != nil {
		return nil, err
	}

	textChunks, err := p.chunker.ChunkText(fullText, opts)
	if err != nil {
		return nil, err
	}

	chunks := make([]types.DocumentChunk, 0, len(textChunks))
	for i, text := range textChunks {
		chunks = append(chunks, types.DocumentChunk{
			ID:   fmt.Sprintf("%s_%s_pdf_chunk_%d", lessonID, lessonName, i),
			Text: text,
			Metadata: types.PDFMeta{
				BaseMetadata: types.BaseMetadata{
					LessonID:   lessonID,
					LessonName: lessonName,
					ChunkIndex: i,
				},
				PageNumber: i/2 + 1, // rough estimate
			},
		})
	}

	p.logger.Info("PDF processed", zap.Int("chunks_created", len(chunks)))
	return chunks, nil
}

// ProcessMultiplePDFs decodes each downloaded file from its base64 transport
// encoding and processes them sequentially, concatenating the results.
func (p *ContentProcessor) ProcessMultiplePDFs(files []types.DownloadedFile, lessonID, lessonName string, opts *types.ChunkOptions) ([]types.DocumentChunk, error) {
	p.logger.Info("processing multiple PDFs",
		zap.Int("count", len(files)),
		zap.String("lesson_id", lessonID))

	var allChunks []types.DocumentChunk
	for i, file := range files {
		p.logger.Info("processing PDF file",
			zap.Int("index", i+1),
			zap.Int("total", len(files)))

		data, err := base64.StdEncoding.DecodeString(file.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode PDF data for %s: %w", file.URL, err)
		}

		chunks, err := p.ProcessPDF(data, lessonID, lessonName, opts)
		if err != nil {
			return nil, err
		}
		allChunks = append(allChunks, chunks...)
	}

	p.logger.Info("all PDFs processed", zap.Int("total_chunks", len(allChunks)))
	return allChunks, nil
}

// ProcessArticles chunks each article independently, tagging chunks with the
// article index. Blank articles are skipped, not errors.
func (p *ContentProcessor) ProcessArticles(articles []string, lessonID, lessonName string, opts *types.ChunkOptions) ([]types.DocumentChunk, error) {
	p.logger.Info("processing articles",
		zap.Int("count", len(articles)),
		zap.String("lesson_id", lessonID))

	var allChunks []types.DocumentChunk
	for articleIndex, article := range articles {
		if strings.TrimSpace(article) == "" {
			p.logger.Info("skipping empty article", zap.Int("article_index", articleIndex))
			continue
		}

		textChunks, err := p.chunker.ChunkText(article, opts)
		if err != nil {
			return nil, err
		}

		for chunkIndex, text := range textChunks {
			allChunks = append(allChunks, types.DocumentChunk{
				ID:   fmt.Sprintf("%s_%s_article%d_chunk_%d", lessonID, lessonName, articleIndex, chunkIndex),
				Text: text,
				Metadata: types.ArticleMeta{
					BaseMetadata: types.BaseMetadata{
						LessonID:   lessonID,
						LessonName: lessonName,
						ChunkIndex: chunkIndex,
					},
					ArticleIndex: articleIndex,
				},
			})
		}
	}

	p.logger.Info("articles processed", zap.Int("total_chunks", len(allChunks)))
	return allChunks, nil
}

// ProcessVideoTranscripts chunks each transcript independently, tagging
// chunks with the video index. Blank transcripts are skipped.
func (p *ContentProcessor) ProcessVideoTranscripts(transcripts []string, lessonID, lessonName string, opts *types.ChunkOptions) ([]types.DocumentChunk, error) {
	p.logger.Info("processing video transcripts",
		zap.Int("count", len(transcripts)),
		zap.String("lesson_id", lessonID))

	var allChunks []types.DocumentChunk
	for videoIndex, transcript := range transcripts {
		if strings.TrimSpace(transcript) == "" {
			p.logger.Info("skipping empty transcript", zap.Int("video_index", videoIndex))
			continue
		}

		textChunks, err := p.chunker.ChunkText(transcript, opts)
		if err != nil {
			return nil, err
		}

		for chunkIndex, text := range textChunks {
			allChunks = append(allChunks, types.DocumentChunk{
				ID:   fmt.Sprintf("%s_%s_video%d_chunk_%d", lessonID, lessonName, videoIndex, chunkIndex),
				Text: text,
				Metadata: types.VideoMeta{
					BaseMetadata: types.BaseMetadata{
						LessonID:   lessonID,
						LessonName: lessonName,
						ChunkIndex: chunkIndex,
					},
					VideoIndex: videoIndex,
				},
			})
		}
	}

	p.logger.Info("video transcripts processed", zap.Int("total_chunks", len(allChunks)))
	return allChunks, nil
}
