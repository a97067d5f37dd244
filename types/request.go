package types

// IngestLessonRequest carries every piece of material for one lesson.
// PDFFiles are URLs to download; Articles and VideoTranscripts are raw text.
type IngestLessonRequest struct {
	LessonID         string   `json:"lessonId" binding:"required"`
	LessonName       string   `json:"lessonName" binding:"required"`
	PDFFiles         []string `json:"pdfFiles"`
	Articles         []string `json:"articles"`
	VideoTranscripts []string `json:"videoTranscripts"`
}

// SearchRequest asks for the chunks of one lesson most similar to a query.
type SearchRequest struct {
	LessonID string `json:"lessonId" binding:"required"`
	Query    string `json:"query" binding:"required"`
	TopK     int    `json:"topK"`
}

// DownloadOptions overrides the configured download behavior per call.
// Zero-valued fields keep the configured defaults.
type DownloadOptions struct {
	MaxRetries int
	TimeoutMs  int
	UserAgent  string
}
