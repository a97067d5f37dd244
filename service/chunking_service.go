package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tieubaoca/lesson-rag/config"
	"github.com/tieubaoca/lesson-rag/types"
	"go.uber.org/zap"
)

// Match sentences ending with . ! ? followed by space or end of string.
var sentenceRegex = regexp.MustCompile(`[^.!?]+[.!?]+(?:\s|$)`)

// ChunkingService splits raw text into bounded, overlapping passages.
// Output is deterministic for identical (text, options).
type ChunkingService struct {
	cfg    config.ChunkingConfig
	logger *zap.Logger
}

func NewChunkingService(cfg config.ChunkingConfig, logger *zap.Logger) *ChunkingService {
	return &ChunkingService{
		cfg:    cfg,
		logger: logger,
	}
}

// resolveOptions merges per-call overrides onto the configured defaults.
// A nil opts means "use defaults"; a non-nil opts takes SplitOnSentences
// as given and falls back per field for the sizes.
func (s *ChunkingService) resolveOptions(opts *types.ChunkOptions) types.ChunkOptions {
	resolved := types.ChunkOptions{
		MaxChunkSize:     s.cfg.MaxChunkSize,
		Overlap:          s.cfg.Overlap,
		SplitOnSentences: s.cfg.SplitOnSentences,
	}
	if opts == nil {
		return resolved
	}
	if opts.MaxChunkSize > 0 {
		resolved.MaxChunkSize = opts.MaxChunkSize
	}
	if opts.Overlap > 0 {
		resolved.Overlap = opts.Overlap
	}
	resolved.SplitOnSentences = opts.SplitOnSentences
	return resolved
}

func validateOptions(opts types.ChunkOptions) error {
	if opts.MaxChunkSize <= 0 {
		return fmt.Errorf("invalid chunk options: max chunk size must be > 0, got %d", opts.MaxChunkSize)
	}
	if opts.Overlap < 0 {
		return fmt.Errorf("invalid chunk options: overlap must be >= 0, got %d", opts.Overlap)
	}
	if opts.Overlap >= opts.MaxChunkSize {
		return fmt.Errorf("invalid chunk options: overlap %d must be smaller than max chunk size %d", opts.Overlap, opts.MaxChunkSize)
	}
	return nil
}

// ChunkText splits text into chunks according to opts. Empty or blank text
// yields no chunks and no error.
func (s *ChunkingService) ChunkText(text string, opts *types.ChunkOptions) ([]string, error) {
	resolved := s.resolveOptions(opts)
	if err := validateOptions(resolved); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		s.logger.Debug("empty text provided for chunking")
		return nil, nil
	}

	s.logger.Debug("chunking text",
		zap.Int("text_length", len(text)),
		zap.Int("max_chunk_size", resolved.MaxChunkSize))

	var chunks []string
	if resolved.SplitOnSentences {
		chunks = s.chunkBySentences(text, resolved)
	} else {
		chunks = s.chunkByCharacters(text, resolved)
	}

	s.logger.Debug("text chunked",
		zap.Int("text_length", len(text)),
		zap.Int("chunks_created", len(chunks)))

	return chunks, nil
}

// EstimateChunkCount approximates how many chunks a text of the given length
// will produce, for progress reporting before the actual split runs.
func (s *ChunkingService) EstimateChunkCount(textLength int, opts *types.ChunkOptions) int {
	resolved := s.resolveOptions(opts)
	effective := resolved.MaxChunkSize - resolved.Overlap
	if effective <= 0 {
		return 0
	}
	return (textLength + effective - 1) / effective
}

// splitIntoSentences breaks text on . ! ? boundaries. Text without any
// terminator comes back as a single sentence.
func splitIntoSentences(text string) []string {
	matches := sentenceRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

// chunkBySentences accumulates sentences into chunks, seeding each new chunk
// with the trailing sentences of the previous one whose combined length fits
// the overlap budget. Chunk boundaries always fall on sentence edges, so a
// chunk may exceed MaxChunkSize by at most one sentence's length.
func (s *ChunkingService) chunkBySentences(text string, opts types.ChunkOptions) []string {
	sentences := splitIntoSentences(text)

	var chunks []string
	currentChunk := ""
	var overlapBuffer []string

	for _, sentence := range sentences {
		tentative := currentChunk
		if tentative != "" {
			tentative += " "
		}
		tentative += sentence

		if runeLen(tentative) > opts.MaxChunkSize && currentChunk != "" {
			if runeLen(currentChunk) >= s.cfg.MinChunkSize {
				chunks = append(chunks, strings.TrimSpace(currentChunk))
			}

			// Start the new chunk from the overlap buffer.
			overlapText := strings.Join(overlapBuffer, " ")
			currentChunk = overlapText
			if currentChunk != "" {
				currentChunk += " "
			}
			currentChunk += sentence
			overlapBuffer = []string{sentence}
			continue
		}

		currentChunk = tentative
		overlapBuffer = append(overlapBuffer, sentence)

		// Keep only the trailing sentences that fit the overlap window,
		// measured in characters rather than sentence count.
		overlapSize := 0
		trimmed := make([]string, 0, len(overlapBuffer))
		for i := len(overlapBuffer) - 1; i >= 0; i-- {
			sl := runeLen(overlapBuffer[i])
			if overlapSize+sl > opts.Overlap {
				break
			}
			trimmed = append([]string{overlapBuffer[i]}, trimmed...)
			overlapSize += sl
		}
		overlapBuffer = trimmed
	}

	if runeLen(strings.TrimSpace(currentChunk)) >= s.cfg.MinChunkSize {
		chunks = append(chunks, strings.TrimSpace(currentChunk))
	}

	return chunks
}

// chunkByCharacters slides a fixed-size window across the text, advancing by
// MaxChunkSize - Overlap each step. Windows shorter than MinChunkSize are
// dropped.
func (s *ChunkingService) chunkByCharacters(text string, opts types.ChunkOptions) []string {
	runes := []rune(text)
	var chunks []string

	step := opts.MaxChunkSize - opts.Overlap
	for start := 0; start < len(runes); start += step {
		end := start + opts.MaxChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if runeLen(chunk) >= s.cfg.MinChunkSize {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}
