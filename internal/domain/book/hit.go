package book

// Hit is a catalog entry returned by similarity search.
type Hit struct {
	Book
	score float64
	rank  int
}

// NewHit creates a search hit. Score is 1 - cosine distance and lies in [-1, 1].
func NewHit(b Book, score float64) Hit {
	return Hit{Book: b, score: score}
}

// Score returns the similarity score.
func (h *Hit) Score() float64 { return h.score }

// Rank returns the 1-based position after sorting, or 0 if unranked.
func (h *Hit) Rank() int { return h.rank }

// WithRank returns a copy of the hit with its rank set.
func (h Hit) WithRank(rank int) Hit {
	h.rank = rank
	return h
}
