package domain

import "fmt"

// EntryKind distinguishes files from directories in a repository listing.
type EntryKind string

const (
	EntryFile EntryKind = "file"
	EntryDir  EntryKind = "dir"
)

// FileEntry is one entry in a repository root listing. ContentID is the
// host's stable content hash for the entry (the git blob SHA on GitHub).
type FileEntry struct {
	Path      string
	Kind      EntryKind
	ContentID string
}

// SourceFile is the decoded content of one repository file. It exists only
// for the duration of a single ingestion run.
type SourceFile struct {
	ContentID string
	Path      string
	Text      string
}

// Chunk is a bounded-size, line-aligned slice of a file's text, the unit
// of embedding. Concatenating a parent's chunks in Index order reproduces
// the original text exactly.
type Chunk struct {
	ParentID string
	Index    int
	Text     string
	Total    int
}

// RecordMetadata is the provenance stored alongside each vector.
type RecordMetadata struct {
	Text        string `json:"text"`
	Path        string `json:"path"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
}

// VectorRecord is the only persisted entity: one embedded chunk keyed by a
// stable id, safe to overwrite on re-ingestion of unchanged content.
type VectorRecord struct {
	ID       string
	Values   []float32
	Metadata RecordMetadata
}

// Match is a raw similarity hit returned by a vector store.
type Match struct {
	ID       string
	Score    float64
	Metadata RecordMetadata
}

// QueryResult is a ranked snippet returned to the caller, ordered by
// descending score.
type QueryResult struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// RecordID derives the stable vector id for a chunk of a file. Unique as
// long as the parent content id is unique per file version.
func RecordID(parentID string, index int) string {
	return fmt.Sprintf("%s-chunk-%d", parentID, index)
}
