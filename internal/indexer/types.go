package indexer

// Chunk is a contiguous slice of a document used as a retrieval unit.
// Offsets are measured in characters (runes), not bytes.
type Chunk struct {
	Text          string // Exact document text in [StartOffset, EndOffset)
	StartOffset   int    // Inclusive
	EndOffset     int    // Exclusive
	DocumentID    string
	SequenceIndex int // Dense, 0-based, document order
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return c.EndOffset - c.StartOffset
}
