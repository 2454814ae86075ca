package store

import "sort"

// RetrievalResult is one ranked knowledge-base passage
type RetrievalResult struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float64                `json:"score"`
	ChunkID  string                 `json:"chunk_id"`
}

// Filename returns the human-readable source identifier of the passage, or "" when absent
func (r RetrievalResult) Filename() string {
	for _, key := range []string{"filename", "source"} {
		if v, ok := r.Metadata[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// SortByScore orders results by descending score, keeping collaborator order on ties
func SortByScore(results []RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
