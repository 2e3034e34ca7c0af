package valuation

import (
	"sort"
)

const DefaultLeaderboardLimit = 10

type Entry struct {
	Rank             int     `json:"rank"`
	UserID           uint    `json:"userId"`
	TeamLabel        string  `json:"teamLabel"`
	PortfolioValue   float64 `json:"portfolioValue"`
	ReturnPercentage float64 `json:"returnPercentage"`
}

type Leaderboard struct {
	Day     int     `json:"day"`
	Entries []Entry `json:"entries"`
	// Total counts every participant, not just the returned entries.
	Total int `json:"total"`
}

// Build ranks valuations by total value, highest first. Equal values keep
// their input order and still get distinct consecutive ranks.
func Build(valuations []Valuation, limit int) Leaderboard {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	ranked := make([]Valuation, len(valuations))
	copy(ranked, valuations)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalValue.GreaterThan(ranked[j].TotalValue)
	})

	n := len(ranked)
	if n > limit {
		n = limit
	}
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		v := ranked[i]
		entries = append(entries, Entry{
			Rank:             i + 1,
			UserID:           v.UserID,
			TeamLabel:        v.TeamLabel,
			PortfolioValue:   v.TotalValue.Round(2).InexactFloat64(),
			ReturnPercentage: v.ReturnPercentage.Round(2).InexactFloat64(),
		})
	}

	return Leaderboard{Entries: entries, Total: len(valuations)}
}
