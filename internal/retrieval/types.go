package retrieval

import "fmt"

// Chunk is one indexed slice of a source document.
type Chunk struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	DocumentID string `json:"documentId"`
	Index      int    `json:"index"`
	Filename   string `json:"filename"`
}

// EmbeddedChunk pairs a chunk with the vector it was indexed under.
type EmbeddedChunk struct {
	Chunk     Chunk
	Embedding []float32
}

// NewChunks wraps split texts of one document into Chunks, keeping their order.
func NewChunks(documentID, filename string, texts []string) []Chunk {
	chunks := make([]Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, Chunk{
			ID:         fmt.Sprintf("%s_chunk_%d", documentID, i),
			Text:       t,
			DocumentID: documentID,
			Index:      i,
			Filename:   filename,
		})
	}
	return chunks
}
