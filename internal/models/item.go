package models

// Metadata keys written by the document index on every chunk item.
const (
	MetaDocumentID = "documentId"
	MetaStartPos   = "startPos"
	MetaEndPos     = "endPos"
)

// Item is a stored (id, vector, metadata) record. Items are never mutated in place.
type Item struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
}

// Clone returns a copy of it that shares no vector or metadata storage.
func (it Item) Clone() Item {
	return Item{
		ID:       it.ID,
		Vector:   append([]float32(nil), it.Vector...),
		Metadata: it.Metadata.Clone(),
	}
}

// Snapshot is the durable state of a vector store.
type Snapshot struct {
	Version int    `json:"version"`
	Items   []Item `json:"items"`
}

// ChunkHit is an item matched by a query together with its similarity score.
type ChunkHit struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}

// Chunk is a token-bounded span of a document produced by the chunker.
// StartPos and EndPos are inclusive byte offsets into the original text.
// StartOverlap/EndOverlap hold tokens borrowed from the neighbouring chunks and are never embedded.
type Chunk struct {
	Text         string
	Tokens       []int
	StartPos     int
	EndPos       int
	StartOverlap []int
	EndOverlap   []int
}

// Section is an assembled span of document text bounded by a token budget.
type Section struct {
	Text       string  `json:"text"`
	TokenCount int     `json:"token_count"`
	Score      float64 `json:"score"`
}
