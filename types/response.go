package types

// DataResponse is the generic JSON envelope for HTTP responses.
type DataResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// IngestionBreakdown counts chunks per source type.
type IngestionBreakdown struct {
	PDFChunks     int `json:"pdfChunks"`
	ArticleChunks int `json:"articleChunks"`
	VideoChunks   int `json:"videoChunks"`
}

// IngestionResult summarizes a completed lesson ingestion.
type IngestionResult struct {
	ChunksCreated int                `json:"chunksCreated"`
	Breakdown     IngestionBreakdown `json:"breakdown"`
	Message       string             `json:"message"`
}

// IngestStatus is a progress event emitted while an ingestion runs.
type IngestStatus struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Progress int    `json:"progress"`
}

// SearchResponse wraps the scored hits for a search request.
type SearchResponse struct {
	Results []RetrievalResult `json:"results"`
}
