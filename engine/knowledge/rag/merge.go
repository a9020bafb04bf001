package rag

import (
	"math"
	"sort"
	"strings"

	"github.com/liftwise/coachgate/engine/knowledge/namespace"
	"github.com/liftwise/coachgate/engine/knowledge/retriever"
)

// Chunk is a retrieved passage with the selection weight that ranked it.
// Metadata carries the backend's provenance (source, citation) untouched.
type Chunk struct {
	Text        string         `json:"text"`
	Namespace   string         `json:"namespace"`
	Score       float64        `json:"score"`
	Relevance   float64        `json:"relevance"`
	Weight      float64        `json:"weight"`
	ContentType string         `json:"content_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// topKFor splits maxChunks across selections in proportion to weight. Every
// selected namespace asks for at least one chunk.
func topKFor(maxChunks int, weight, maxWeight float64) int {
	if maxWeight <= 0 {
		return 1
	}
	k := int(math.Ceil(float64(maxChunks) * weight / maxWeight))
	return max(1, k)
}

func maxWeight(selections []namespace.Selection) float64 {
	var w float64
	for _, s := range selections {
		w = max(w, s.Weight)
	}
	return w
}

// mergeChunks combines per-namespace results. results[i] belongs to
// selections[i]. Identical texts keep the best scoring copy. Ranking is by
// weight × relevance; ties keep namespace order then backend rank.
func mergeChunks(selections []namespace.Selection, results [][]retriever.Chunk, maxChunks int) []Chunk {
	var merged []Chunk
	index := make(map[string]int)
	for i, sel := range selections {
		if i >= len(results) {
			break
		}
		for _, c := range results[i] {
			text := strings.TrimSpace(c.Text)
			if text == "" {
				continue
			}
			candidate := Chunk{
				Text:        text,
				Namespace:   sel.ID,
				Score:       sel.Weight * c.Score,
				Relevance:   c.Score,
				Weight:      sel.Weight,
				ContentType: c.ContentType,
				Metadata:    c.Metadata,
			}
			if at, seen := index[text]; seen {
				if candidate.Score > merged[at].Score {
					merged[at] = candidate
				}
				continue
			}
			index[text] = len(merged)
			merged = append(merged, candidate)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if maxChunks > 0 && len(merged) > maxChunks {
		merged = merged[:maxChunks]
	}
	return merged
}
