package store

// Book states. Mutated only by the orchestrator.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Book is one uploaded document and its processing state.
type Book struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Authors          string `json:"authors,omitempty"`
	Edition          string `json:"edition,omitempty"`
	PageCount        int    `json:"page_count"`
	SourcePath       string `json:"source_path"`
	OriginalFilename string `json:"original_filename,omitempty"`
	ProcessingStatus string `json:"processing_status"`
	ErrorMessage     string `json:"error_message,omitempty"`
	MetadataJSON     string `json:"metadata_json,omitempty"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

// Chapter is the pipeline's primary output row.
type Chapter struct {
	ID                  string  `json:"id"`
	BookID              *string `json:"book_id,omitempty"`
	SourceType          string  `json:"source_type"`
	ChapterNumber       *int    `json:"chapter_number,omitempty"`
	ChapterTitle        string  `json:"chapter_title"`
	StartPage           int     `json:"start_page"`
	EndPage             int     `json:"end_page"`
	PageCount           int     `json:"page_count"`
	ExtractedText       string  `json:"-"`
	WordCount           int     `json:"word_count"`
	HasImages           bool    `json:"has_images"`
	ImageCount          int     `json:"image_count"`
	ContentHash         string  `json:"content_hash"`
	DetectionMethod     string  `json:"detection_method"`
	DetectionConfidence float64 `json:"detection_confidence"`
	IsDuplicate         bool    `json:"is_duplicate"`
	DuplicateOfID       *string `json:"duplicate_of_id,omitempty"`
	DuplicateGroupID    string  `json:"duplicate_group_id,omitempty"`
	PreferenceScore     float64 `json:"preference_score"`
	QualityScore        float64 `json:"quality_score"`
	CreatedAt           int64   `json:"created_at"`
}

// Chunk is one fragment of an overlong chapter.
type Chunk struct {
	ID          string `json:"id"`
	ChapterID   string `json:"chapter_id"`
	ChunkIndex  int    `json:"chunk_index"`
	ChunkText   string `json:"chunk_text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	Heading     string `json:"heading,omitempty"`
	WordCount   int    `json:"word_count"`
	CreatedAt   int64  `json:"created_at"`
}

// SearchHit is one full-text search result.
type SearchHit struct {
	ChapterID    string  `json:"chapter_id"`
	ChapterTitle string  `json:"chapter_title"`
	SourceType   string  `json:"source_type"`
	BookID       *string `json:"book_id,omitempty"`
	Snippet      string  `json:"snippet"`
	Rank         float64 `json:"rank"`
}
