package ingest

// Document is one unit of loaded text: a page, slide, sheet or whole file.
type Document struct {
	Content string
	Source  string // base file name
	Kind    string
	Page    int

	// Data holds the parsed structure for JSON and YAML inputs.
	Data any
}

// Chunk is a text segment ready for embedding.
type Chunk struct {
	Text   string
	Index  int
	Source string
	Page   int
}

// Stats summarizes one ingestion.
type Stats struct {
	FilesProcessed int      `json:"files_processed"`
	Files          []string `json:"files"`
	JSONMode       bool     `json:"json_mode"`
	ChunksIndexed  int      `json:"chunks_indexed"`
	VectorDBReady  bool     `json:"vector_db_ready"`
}
