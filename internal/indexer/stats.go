package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

const (
	// ChunkerVersion is the version identifier for the chunker implementation.
	// Update this when chunking logic changes significantly.
	ChunkerVersion = "v2.0"
	// RunesPerToken is an approximation for token counting (4 chars per token).
	RunesPerToken = 4.0
)

// ChunkStats describes the chunks of the active document.
type ChunkStats struct {
	// Chunks is the number of chunks produced.
	Chunks int `json:"chunks"`
	// Characters is the length of the chunked text in characters.
	Characters int `json:"characters"`
	// CharStats summarizes chunk lengths in characters.
	CharStats DistributionStats `json:"char_stats"`
	// TokenStats summarizes estimated tokens per chunk.
	TokenStats DistributionStats `json:"token_stats"`
	// ChunkerVersion is the version of the chunker used.
	ChunkerVersion string `json:"chunker_version"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// DistributionStats contains min, max, mean and p95 of a set of counts.
type DistributionStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// ComputeChunkStats computes statistics for a chunked document.
func ComputeChunkStats(chunks []Chunk, textLen int, embeddingModelName string, size, overlap int) ChunkStats {
	stats := ChunkStats{
		Chunks:         len(chunks),
		Characters:     textLen,
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   IndexVersion(embeddingModelName, size, overlap),
	}
	if len(chunks) == 0 {
		return stats
	}

	charCounts := make([]int, 0, len(chunks))
	tokenCounts := make([]int, 0, len(chunks))
	for _, chunk := range chunks {
		runeCount := utf8.RuneCountInString(chunk.Text)
		tokenCount := int(math.Round(float64(runeCount) / RunesPerToken))
		if tokenCount < 1 {
			tokenCount = 1
		}
		charCounts = append(charCounts, runeCount)
		tokenCounts = append(tokenCounts, tokenCount)
	}

	stats.CharStats = computeDistribution(charCounts)
	stats.TokenStats = computeDistribution(tokenCounts)
	return stats
}

// IndexVersion hashes the parameters that determine index contents.
func IndexVersion(embeddingModelName string, size, overlap int) string {
	input := fmt.Sprintf("%s|%s|size=%d|overlap=%d", ChunkerVersion, embeddingModelName, size, overlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// computeDistribution computes min, max, mean, and p95 from counts.
func computeDistribution(counts []int) DistributionStats {
	if len(counts) == 0 {
		return DistributionStats{}
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range counts {
		sum += count
	}
	mean := float64(sum) / float64(len(counts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return DistributionStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
