package game

import "fmt"

// Rank is one tier of the rank table.
type Rank struct {
	Radius float64 `json:"radius"`
	Value  int     `json:"value"`
	Cue    string  `json:"cue"`
}

// RankTable is the immutable ordered list of ranks 0..N.
type RankTable struct {
	ranks []Rank
}

// NewRankTable copies ranks into a table. It panics on an empty table.
func NewRankTable(ranks []Rank) RankTable {
	if len(ranks) == 0 {
		panic("game: empty rank table")
	}
	cp := make([]Rank, len(ranks))
	copy(cp, ranks)
	return RankTable{ranks: cp}
}

// DefaultRankTable returns the 11-rank table used by the game.
func DefaultRankTable() RankTable {
	radii := []float64{24, 32, 42, 52, 64, 76, 90, 104, 120, 140, 160}
	values := []int{1, 3, 6, 10, 15, 21, 28, 36, 45, 55, 66}
	ranks := make([]Rank, len(radii))
	for i := range radii {
		ranks[i] = Rank{
			Radius: radii[i],
			Value:  values[i],
			Cue:    fmt.Sprintf("merge_%d", i),
		}
	}
	return NewRankTable(ranks)
}

// MaxRank returns N, the highest rank. Max-rank merges do not promote.
func (t RankTable) MaxRank() int {
	return len(t.ranks) - 1
}

func (t RankTable) Valid(r int) bool {
	return r >= 0 && r < len(t.ranks)
}

// At returns rank r. r must be valid.
func (t RankTable) At(r int) Rank {
	return t.ranks[r]
}

func (t RankTable) Radius(r int) float64 {
	return t.ranks[r].Radius
}

func (t RankTable) Len() int {
	return len(t.ranks)
}

// MaxRadius returns the radius of the largest rank.
func (t RankTable) MaxRadius() float64 {
	largest := 0.0
	for _, r := range t.ranks {
		if r.Radius > largest {
			largest = r.Radius
		}
	}
	return largest
}
