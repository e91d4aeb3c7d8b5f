package models

// Document is one logical piece of source content: a parsed file (or a
// single page of one) or a fetched web page. Documents are transient;
// they exist only between loading and chunking.
type Document struct {
	Source   string
	Content  string
	Metadata map[string]interface{}
}

// Chunk is a bounded, overlapping substring of a Document used as the
// unit of retrieval. It inherits the source metadata of the document it
// was cut from.
type Chunk struct {
	Source   string
	Content  string
	Metadata map[string]interface{}
}

// Record is a chunk together with its embedding vector. Records are
// what the vector index persists.
type Record struct {
	ID        string
	Source    string
	Content   string
	Metadata  map[string]interface{}
	Embedding []float32
}

// SearchResult pairs a stored record with its similarity to a query
// vector. Higher scores are more similar.
type SearchResult struct {
	Record Record
	Score  float32
}

// Status describes the persisted index as seen by the status operation.
type Status struct {
	Exists  bool
	Records int
	Corrupt bool
}
