package types

// SourceType identifies the kind of lesson material a chunk came from.
type SourceType string

const (
	SourcePDF     SourceType = "pdf"
	SourceArticle SourceType = "article"
	SourceVideo   SourceType = "video"
)

// DocumentChunk is a single unit of indexed lesson content.
type DocumentChunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata is the sealed set of per-source metadata shapes. Each
// implementation carries the common lesson fields plus its own provenance
// field, and can flatten itself into the property map stored alongside the
// chunk vector.
type ChunkMetadata interface {
	SourceType() SourceType
	Base() BaseMetadata
	Flatten() map[string]interface{}

	sealedMetadata()
}

// BaseMetadata holds the fields every chunk carries regardless of source.
type BaseMetadata struct {
	LessonID   string `json:"lessonId"`
	LessonName string `json:"lessonName"`
	ChunkIndex int    `json:"chunkIndex"`
}

func (m BaseMetadata) flatten(sourceType SourceType) map[string]interface{} {
	return map[string]interface{}{
		"lessonId":   m.LessonID,
		"lessonName": m.LessonName,
		"chunkIndex": m.ChunkIndex,
		"sourceType": string(sourceType),
	}
}

// PDFMeta tags chunks extracted from PDF files. PageNumber is a rough
// estimate, not an exact page mapping.
type PDFMeta struct {
	BaseMetadata
	PageNumber int `json:"pageNumber"`
}

func (m PDFMeta) SourceType() SourceType { return SourcePDF }
func (m PDFMeta) Base() BaseMetadata     { return m.BaseMetadata }
func (m PDFMeta) Flatten() map[string]interface{} {
	props := m.flatten(SourcePDF)
	props["pageNumber"] = m.PageNumber
	return props
}
func (PDFMeta) sealedMetadata() {}

// ArticleMeta tags chunks produced from article text.
type ArticleMeta struct {
	BaseMetadata
	ArticleIndex int `json:"articleIndex"`
}

func (m ArticleMeta) SourceType() SourceType { return SourceArticle }
func (m ArticleMeta) Base() BaseMetadata     { return m.BaseMetadata }
func (m ArticleMeta) Flatten() map[string]interface{} {
	props := m.flatten(SourceArticle)
	props["articleIndex"] = m.ArticleIndex
	return props
}
func (ArticleMeta) sealedMetadata() {}

// VideoMeta tags chunks produced from video transcripts.
type VideoMeta struct {
	BaseMetadata
	VideoIndex int `json:"videoIndex"`
}

func (m VideoMeta) SourceType() SourceType { return SourceVideo }
func (m VideoMeta) Base() BaseMetadata     { return m.BaseMetadata }
func (m VideoMeta) Flatten() map[string]interface{} {
	props := m.flatten(SourceVideo)
	props["videoIndex"] = m.VideoIndex
	return props
}
func (VideoMeta) sealedMetadata() {}

// ChunkOptions controls how raw text is split. Zero-valued size fields fall
// back to the configured defaults.
type ChunkOptions struct {
	MaxChunkSize     int  `json:"maxChunkSize"`
	Overlap          int  `json:"overlap"`
	SplitOnSentences bool `json:"splitOnSentences"`
}

// RetrievalResult is one scored hit returned from a similarity search.
type RetrievalResult struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata RetrievalMetadata `json:"metadata"`
}

// RetrievalMetadata is the subset of chunk metadata surfaced to retrieval
// callers.
type RetrievalMetadata struct {
	LessonName string `json:"lessonName"`
	PageNumber int    `json:"pageNumber,omitempty"`
	SourceType string `json:"sourceType,omitempty"`
}

// DownloadedFile is a fetched remote resource with its payload base64
// encoded for transport.
type DownloadedFile struct {
	Data string `json:"data"`
	URL  string `json:"url"`
}
